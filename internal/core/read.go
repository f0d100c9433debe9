package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// readLimited reads all of r, failing with ErrFileTooLarge past max bytes.
// ctx is checked between chunks so a slow upload can be abandoned.
func readLimited(ctx context.Context, r io.Reader, max int64) ([]byte, error) {
	var buf bytes.Buffer
	lr := io.LimitReader(r, max+1)
	chunk := make([]byte, 64<<10)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := lr.Read(chunk)
		buf.Write(chunk[:n])
		if int64(buf.Len()) > max {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, max)
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
	}
}
