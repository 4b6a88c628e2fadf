/* concon connects to each host given, and prints what it says in response to `GET /`.
*
* CONNECTION
* * Each target is `host`, `host:port`, an IP literal, or `[v6]:port`. Without a port, `--port` (default 80) is used.
* * The host is resolved to all of its addresses, v4 and v6, in the order the resolver gives them. IP literals aren't resolved.
*   * `--resolve host=addr,...` pins a host's addresses, like curl's option of the same name; the resolver isn't asked.
* * A connection is attempted to every address at once. The first to connect is used; any others that connect afterwards are closed.
* * If no address connects, every attempt's error is reported, and the next host is tried.
*
* DNS
* * `--resolver system` (default) uses the Go standard library, which is either native Go or libc's `getaddrinfo()` via cgo, depending on how this was built (`--dns` says which).
*   Native Go looks in DNS and `/etc/hosts` only; cgo is at the whim of `nsswitch.conf`.
* * `--resolver dns` sends its own queries to the nameservers in resolv.conf, walking the search list, asking for A then AAAA.
*   It sees only DNS.
* * `--dnssec` additionally validates the name's A records from the root, and reports the result. It never affects which addresses are used.
*
* REQUEST
* * `GET / HTTP/1.1` with `Host` set to the target's host (with `:port` appended if that's not 80), and `Connection: close`.
* * The response is read until the server closes the stream, or a read returns less than `--buffer-size` bytes, whichever is first.
*   The latter is a heuristic, and can cut off responses from servers that pause mid-response.
* * The response is printed as text; bytes that aren't valid UTF-8 are dropped. Nothing is parsed.
*
* EXIT
* * 0 if every host gave a response, 1 otherwise.
 */
package main
