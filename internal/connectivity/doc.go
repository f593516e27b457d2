// Package connectivity decides whether the remote maintenance API is
// reachable and broadcasts online/offline transitions.
//
// A Monitor polls a Prober (by default a TCP dial to the API host) on a fixed
// interval and re-probes immediately when the kernel reports a network
// interface change over netlink. Other signal sources can push state directly
// with Report. Subscribers only see transitions, never repeated states.
package connectivity
