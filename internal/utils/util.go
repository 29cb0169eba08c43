package utils

import (
	"io"
)

func SafeClose(c io.Closer) {
	if c == nil {
		return
	}
	_ = c.Close()
}
