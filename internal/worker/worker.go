package worker

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/Geo-fs/NeroAI/internal/domain/tool"
)

// Run executes one tool request: decode from in, dispatch against the
// registry, encode the response to out. The returned exit code is 0 for
// a successful tool run and 1 otherwise; a response document is written
// in both cases so the parent always has something to parse.
func Run(in io.Reader, out io.Writer, registry *tool.Registry) int {
	resp := execute(in, registry)
	if err := json.NewEncoder(out).Encode(resp); err != nil {
		return 1
	}
	if resp.OK {
		return 0
	}
	return 1
}

func execute(in io.Reader, registry *tool.Registry) (resp Response) {
	// A panicking plugin must still produce a parseable response.
	defer func() {
		if r := recover(); r != nil {
			resp = Response{
				OK:    false,
				Error: fmt.Sprintf("tool panicked: %v", r),
				Trace: string(debug.Stack()),
			}
		}
	}()

	var req Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return Response{OK: false, Error: fmt.Sprintf("malformed request: %v", err)}
	}
	plugin := registry.Get(req.Tool)
	if plugin == nil {
		return Response{OK: false, Error: fmt.Sprintf("unknown tool %q", req.Tool)}
	}
	result, err := plugin.Run(req.Args)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, Result: result}
}
