package resolve

import (
	"fmt"
	"net/netip"
	"strings"
)

// Static holds fixed answers for some names, like curl's --resolve.
type Static struct {
	entries map[string][]netip.Addr
}

func NewStatic(entries map[string][]netip.Addr) *Static {
	s := &Static{entries: map[string][]netip.Addr{}}
	for host, addrs := range entries {
		name, err := normaliseHost(host)
		if err != nil {
			name = host
		}
		s.entries[name] = addrs
	}
	return s
}

// ParseOverrides reads entries of the form host=addr[,addr...]. Repeating a host appends.
// A host with an empty address list resolves to nothing.
func ParseOverrides(entries []string) (*Static, error) {
	s := &Static{entries: map[string][]netip.Addr{}}

	for _, entry := range entries {
		host, list, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("override %q: expecting host=addr[,addr...]", entry)
		}
		name, err := normaliseHost(host)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", entry, err)
		}

		addrs := s.entries[name]
		for _, a := range strings.Split(list, ",") {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			addr, err := netip.ParseAddr(a)
			if err != nil {
				return nil, fmt.Errorf("override %q: %w", entry, err)
			}
			addrs = append(addrs, addr)
		}
		s.entries[name] = addrs
	}

	return s, nil
}

// Lookup is safe on a nil *Static, which has no entries.
func (s *Static) Lookup(name string) ([]netip.Addr, bool) {
	if s == nil {
		return nil, false
	}
	addrs, ok := s.entries[name]
	return addrs, ok
}

func (s *Static) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}
