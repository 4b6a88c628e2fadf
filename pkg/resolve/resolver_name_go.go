//go:build !cgo || netgo

package resolve

// See resolver_name_libc.go for the build matrix.

const SystemResolverName = "Go native (reads /etc/hosts and /etc/resolv.conf itself; ignores nsswitch beyond files and dns)"
