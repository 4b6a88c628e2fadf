//go:build cgo && !netgo

package resolve

/* Go doesn't expose which lookup implementation got linked in, so mirror the toolchain's choice:
* libc is used only when cgo is on and netgo wasn't asked for. CGO_ENABLED=0 doesn't set the netgo
* tag, so the tag alone isn't enough to tell.
*
*         netgo  !netgo
* cgo     go     libc
* !cgo    go     go
 */

const SystemResolverName = "libc getaddrinfo() via cgo (follows nsswitch.conf)"
