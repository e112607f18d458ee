package factory

import (
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"
)

// loadResource fills the stream buffer with the bytes of a resource and
// returns their count. Transports are tried in order: builtins archive,
// HTTP endpoint, local filesystem. The archive is keyed by the original
// relative name, the other transports by the canonical path. Whatever the
// transport, the byte after the content is a NUL, so handlers that want to
// treat the content as text can rely on a terminated buffer.
func (f *Factory) loadResource(path, originalName string) (int, error) {
	if f.builtins != nil {
		if data, ok := f.builtins.FindEntry(originalName); ok {
			size := len(data)
			if size+1 >= f.streamBufferSize {
				f.logger.Error("resource too large for stream buffer",
					zap.String("path", path))
				return 0, ErrStreamBufferTooSmall
			}
			copy(f.streamBuffer, data)
			f.streamBuffer[size] = 0
			return size, nil
		}
		// No else: an archive miss falls through to the other transports.
	}

	if f.httpClient != nil {
		return f.loadHTTP(path)
	}
	return f.loadFile(path)
}

// loadHTTP streams a GET response into the stream buffer. Per-request
// state (status, content length, streamed byte count, sticky result) lives
// on the factory and is reset here.
func (f *Factory) loadHTTP(path string) (int, error) {
	f.httpContentLength = -1
	f.httpBytesStreamed = 0
	f.httpStatus = -1
	f.httpLastResult = nil

	resp, err := f.httpClient.Get(f.httpBase + path)
	if err != nil {
		f.logger.Error("resource not found", zap.String("path", path), zap.Error(err))
		return 0, ErrIO
	}
	defer resp.Body.Close()

	f.httpStatus = resp.StatusCode
	f.httpContentLength = resp.ContentLength

	if resp.StatusCode != http.StatusOK {
		f.logger.Error("resource not found", zap.String("path", path))
		if resp.StatusCode == http.StatusNotFound {
			return 0, ErrResourceNotFound
		}
		f.logger.Warn("unexpected http status code", zap.Int("status", resp.StatusCode))
		return 0, ErrIO
	}

	for {
		free := f.streamBufferSize - f.httpBytesStreamed
		if free == 0 {
			// The buffer is full; any further content cannot be kept.
			var probe [1]byte
			n, err := resp.Body.Read(probe[:])
			if n > 0 {
				f.httpLastResult = ErrStreamBufferTooSmall
				// Drain the rest so the request completes.
				_, _ = io.Copy(io.Discard, resp.Body)
				break
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				f.logger.Error("reading http response", zap.String("path", path), zap.Error(err))
				return 0, ErrIO
			}
			continue
		}

		n, err := resp.Body.Read(f.streamBuffer[f.httpBytesStreamed : f.httpBytesStreamed+free])
		f.httpBytesStreamed += n
		if err == io.EOF {
			break
		}
		if err != nil {
			f.logger.Error("reading http response", zap.String("path", path), zap.Error(err))
			return 0, ErrIO
		}
	}

	if f.httpLastResult != nil {
		f.logger.Error("resource too large for stream buffer", zap.String("path", path))
		return 0, f.httpLastResult
	}

	if f.httpContentLength >= 0 && int(f.httpContentLength) != f.httpBytesStreamed {
		f.logger.Warn("expected content length differs from streamed bytes",
			zap.String("path", path),
			zap.Int64("contentLength", f.httpContentLength),
			zap.Int("streamed", f.httpBytesStreamed),
		)
	}

	f.streamBuffer[f.httpBytesStreamed] = 0
	return f.httpBytesStreamed, nil
}

// loadFile reads a local file into the stream buffer.
func (f *Factory) loadFile(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		f.logger.Error("resource not found", zap.String("path", path))
		return 0, ErrResourceNotFound
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, ErrIO
	}
	size := int(info.Size())

	if size+1 >= f.streamBufferSize {
		f.logger.Error("resource too large for stream buffer", zap.String("path", path))
		return 0, ErrStreamBufferTooSmall
	}

	if _, err := io.ReadFull(file, f.streamBuffer[:size]); err != nil {
		return 0, ErrIO
	}
	f.streamBuffer[size] = 0
	return size, nil
}
