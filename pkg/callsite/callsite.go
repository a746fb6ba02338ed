// Package callsite captures the reporting goroutine's call stack as
// models.CallSite values, skipping frames that belong to configured packages.
package callsite

import (
	"bytes"
	"runtime"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"diagflow/pkg/models"
)

const maxDepth = 64

// Capturer walks the stack of the calling goroutine. Its skip set is fixed at
// construction so a Capturer is safe for concurrent use.
type Capturer struct {
	skip map[string]struct{}
}

func NewCapturer(skipPackages ...string) *Capturer {
	skip := make(map[string]struct{}, len(skipPackages)+1)
	skip["runtime"] = struct{}{}
	for _, p := range skipPackages {
		skip[p] = struct{}{}
	}
	return &Capturer{skip: skip}
}

func (c *Capturer) skipped(pkg string) bool {
	_, ok := c.skip[pkg]
	return ok
}

// Origin returns the innermost frame outside the skipped packages.
func (c *Capturer) Origin() (models.CallSite, bool) {
	var found models.CallSite
	ok := false
	c.walk(func(site models.CallSite) bool {
		found = site
		ok = true
		return false
	})
	return found, ok
}

// Trace returns every frame outside the skipped packages, innermost first.
func (c *Capturer) Trace() []models.CallSite {
	trace := make([]models.CallSite, 0, 16)
	c.walk(func(site models.CallSite) bool {
		trace = append(trace, site)
		return true
	})
	return trace
}

func (c *Capturer) walk(visit func(models.CallSite) bool) {
	pcs := make([]uintptr, maxDepth)
	// skip runtime.Callers, walk and the exported caller
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			site := Parse(frame.Function, frame.File, frame.Line)
			if !c.skipped(site.Namespace) && !visit(site) {
				return
			}
		}
		if !more {
			return
		}
	}
}

// Parse splits a runtime function name such as
// "example.com/app/loader.(*Loader).Load.func1" into its call-site parts.
func Parse(function, file string, line int) models.CallSite {
	site := models.CallSite{
		File:      file,
		Line:      line,
		Signature: function,
	}

	name := stripTypeParams(function)
	wrapper := strings.HasSuffix(name, "-fm")
	name = strings.TrimSuffix(name, "-fm")

	lastSlash := strings.LastIndex(name, "/")
	dot := strings.Index(name[lastSlash+1:], ".")
	if dot < 0 {
		site.Method = name
		site.MethodKind = models.MethodAbstract
		return site
	}
	// the runtime escapes dots in the last path element as %2e
	site.Namespace = strings.ReplaceAll(name[:lastSlash+1+dot], "%2e", ".")
	rest := name[lastSlash+1+dot+1:]

	synthetic := false
	switch {
	case strings.HasPrefix(rest, "("):
		end := strings.Index(rest, ")")
		if end < 0 {
			site.Method = rest
			break
		}
		site.Type = strings.TrimPrefix(rest[1:end], "*")
		site.Method = firstSegment(strings.TrimPrefix(rest[end+1:], "."))
	case strings.HasPrefix(rest, "glob.."), strings.HasPrefix(rest, "init."), rest == "init":
		site.Method = firstSegment(rest)
		synthetic = true
	default:
		segs := strings.Split(rest, ".")
		site.Method = segs[0]
		if len(segs) > 1 && !isClosureSegment(segs[1]) {
			site.Type = segs[0]
			site.Method = segs[1]
		}
	}

	site.MethodKind = classify(site.Method, synthetic, wrapper)
	return site
}

// classify tests flags in fixed priority: public, private, static, virtual,
// abstract.
func classify(method string, synthetic, wrapper bool) models.MethodKind {
	named := method != "" && !synthetic && !wrapper
	switch {
	case named && isExported(method):
		return models.MethodPublic
	case named:
		return models.MethodPrivate
	case synthetic:
		return models.MethodStatic
	case wrapper:
		return models.MethodVirtual
	default:
		return models.MethodAbstract
	}
}

func firstSegment(s string) string {
	if i := strings.Index(s, "."); i >= 0 {
		return s[:i]
	}
	return s
}

func isClosureSegment(seg string) bool {
	if strings.HasPrefix(seg, "func") {
		_, err := strconv.Atoi(strings.TrimPrefix(seg, "func"))
		return err == nil
	}
	_, err := strconv.Atoi(seg)
	return err == nil
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func stripTypeParams(name string) string {
	for {
		open := strings.Index(name, "[")
		if open < 0 {
			return name
		}
		end := strings.Index(name[open:], "]")
		if end < 0 {
			return name
		}
		name = name[:open] + name[open+end+1:]
	}
}

// GoroutineID returns the id of the calling goroutine as printed in stack
// dumps. Go has no thread identity to report, so messages carry this instead.
func GoroutineID() int64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i > 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
