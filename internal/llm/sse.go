package llm

import (
	"bufio"
	"io"
	"strings"
)

// ReadSSE calls fn with the payload of every "data:" line of a server-sent
// event stream. It stops at EOF, at a "[DONE]" payload, or when fn returns
// stop or an error.
func ReadSSE(body io.Reader, fn func(data string) (stop bool, err error)) error {
	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return nil
			}
			stop, ferr := fn(data)
			if ferr != nil {
				return ferr
			}
			if stop {
				return nil
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
