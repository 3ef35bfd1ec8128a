package restyutil

import (
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

// DumpMessages writes every request/response pair made by client to output,
// `output` can be nil, in which case this function is a no-op.
func DumpMessages(client *resty.Client, output Output) {
	if output == nil {
		return
	}

	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := atomic.AddUint64(&counter, 1)
		output.Write(fmt.Sprintf("%04d", id), FormatHttpMessage(res))
		return nil
	})
}
