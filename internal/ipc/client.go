package ipc

import (
	"encoding/json"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Start requests the daemon to start syncing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.call("Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop syncing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns queued mutations in insertion order.
func (c *Client) QueueList() (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.call("QueueList", QueueListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Enqueue queues a mutation.
func (c *Client) Enqueue(mutationType string, payload json.RawMessage) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	req := EnqueueRequest{Type: mutationType, Payload: payload}
	if err := c.call("Enqueue", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes all items from the queue.
func (c *Client) QueueClear() (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.call("QueueClear", QueueClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sync runs a pass. When wait is false the pass is only requested.
func (c *Client) Sync(wait bool) (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.call("Sync", SyncRequest{Wait: wait}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeadLetterList returns dropped mutations.
func (c *Client) DeadLetterList() (*DeadLetterListResponse, error) {
	var resp DeadLetterListResponse
	if err := c.call("DeadLetterList", DeadLetterListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeadLetterRequeue moves a dead letter back into the queue.
func (c *Client) DeadLetterRequeue(id string) (*DeadLetterRequeueResponse, error) {
	var resp DeadLetterRequeueResponse
	if err := c.call("DeadLetterRequeue", DeadLetterRequeueRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeadLetterPurge deletes every dead letter.
func (c *Client) DeadLetterPurge() (*DeadLetterPurgeResponse, error) {
	var resp DeadLetterPurgeResponse
	if err := c.call("DeadLetterPurge", DeadLetterPurgeRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.call("DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification asks the daemon to publish a test notification.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return &resp, err
	}
	return &resp, nil
}
