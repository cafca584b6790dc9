package metrics

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// internPoolSize bounds the number of distinct MetricInfo/Tag values a
// process keeps canonicalized. Metric names and tag values are a small,
// effectively-closed set declared by application code at startup, so a
// modest bound is generous headroom rather than a real eviction policy.
const internPoolSize = 4096

// must panics on the cache constructor's only failure mode (a
// non-positive size), which internPoolSize never triggers. Used to give
// infoPool/tagPool direct initializer expressions instead of a func
// init(), since package-level variables are assigned their initial
// values before any func init() runs - ContextInfo/HostnameInfo in
// info.go call Info() from their own initializers and would otherwise
// observe a nil pool.
func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

var (
	infoPool = must(lru.New[string, *MetricInfo](internPoolSize))
	tagPool  = must(lru.New[string, *Tag](internPoolSize))
	poolMu   sync.Mutex
)

// Info interns a (name, description) pair, returning a stable pointer
// shared by every caller that names the same pair.
func Info(name, description string) *MetricInfo {
	key := name + "\x00" + description
	poolMu.Lock()
	defer poolMu.Unlock()

	if info, ok := infoPool.Get(key); ok {
		return info
	}
	info := &MetricInfo{Name: name, Description: description}
	infoPool.Add(key, info)
	return info
}

// InfoOrName interns info if description is non-empty, else defaults the
// description to name (spec.md §4.6: "Descriptions default to name when
// absent").
func InfoOrName(name, description string) *MetricInfo {
	if description == "" {
		description = name
	}
	return Info(name, description)
}

// NewTag interns a (info, value) pair.
func NewTag(info *MetricInfo, value string) *Tag {
	key := info.Name + "\x00" + info.Description + "\x00" + value
	poolMu.Lock()
	defer poolMu.Unlock()

	if tag, ok := tagPool.Get(key); ok {
		return tag
	}
	tag := &Tag{Info: info, Value: value}
	tagPool.Add(key, tag)
	return tag
}
