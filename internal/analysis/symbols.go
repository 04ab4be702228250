package analysis

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ianlancetaylor/demangle"

	"github.com/bitdefender/bddisasm/internal/elfx"
)

// FunctionSymbol is a function entry point with its demangled name.
type FunctionSymbol struct {
	VA        uint64
	Size      uint64
	Name      string
	Demangled string
	PLT       bool
}

// Title is the name shown in listings and the symbol browser.
func (f FunctionSymbol) Title() string {
	if f.Demangled != "" {
		return f.Demangled
	}
	return f.Name
}

// symbolCache memoizes demangling; it is safe for concurrent use.
type symbolCache struct {
	mu            sync.Mutex
	demangleCache map[string]string
	hits          int
}

var cache = &symbolCache{
	demangleCache: make(map[string]string),
}

// CachedDemangle demangles C++ and Rust names. Anything else, including
// "name@plt" suffixes, is handled by demangling the part before the '@'.
func CachedDemangle(mangled string) string {
	cache.mu.Lock()
	if d, ok := cache.demangleCache[mangled]; ok {
		cache.hits++
		cache.mu.Unlock()
		return d
	}
	cache.mu.Unlock()

	base, suffix := mangled, ""
	for i := len(mangled) - 1; i > 0; i-- {
		if mangled[i] == '@' {
			base, suffix = mangled[:i], mangled[i:]
			break
		}
	}
	d := demangle.Filter(base, demangle.NoClones) + suffix

	cache.mu.Lock()
	cache.demangleCache[mangled] = d
	cache.mu.Unlock()
	return d
}

// DemangleCacheStats returns the number of cached names and cache hits.
func DemangleCacheStats() (entries, hits int) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return len(cache.demangleCache), cache.hits
}

// ScanFunctions lists the image's functions, PLT stubs included, in
// address order with one entry per address.
func ScanFunctions(im *elfx.Image) []FunctionSymbol {
	seen := make(map[uint64]bool)
	var out []FunctionSymbol
	for _, s := range im.Functions() {
		if seen[s.Addr] {
			continue
		}
		seen[s.Addr] = true
		out = append(out, FunctionSymbol{
			VA:        s.Addr,
			Size:      s.Size,
			Name:      s.Name,
			Demangled: CachedDemangle(s.Name),
			PLT:       s.IsPLT,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VA < out[j].VA })
	return out
}

// SymbolName renders va as "name" or "name+0xoff" using the function that
// contains it.
func SymbolName(im *elfx.Image, va uint64) (string, bool) {
	sym, off, ok := im.Lookup(va)
	if !ok {
		return "", false
	}
	name := CachedDemangle(sym.Name)
	if off == 0 {
		return name, true
	}
	return fmt.Sprintf("%s+%#x", name, off), true
}
