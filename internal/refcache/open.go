package refcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"
)

// Opener opens a reference location for reading.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, location string) (io.ReadCloser, error)

func (fn OpenerFunc) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	return fn(ctx, location)
}

// SchemeOpener dispatches on the URL scheme of a location. Locations without
// a scheme are treated as local file paths.
type SchemeOpener struct {
	HTTPClient  *http.Client
	FTPTimeout  time.Duration
	FTPUser     string
	FTPPassword string
}

// DefaultOpener returns an opener for http, https, ftp, file and plain paths.
func DefaultOpener() *SchemeOpener {
	return &SchemeOpener{
		HTTPClient:  &http.Client{},
		FTPTimeout:  30 * time.Second,
		FTPUser:     "anonymous",
		FTPPassword: "anonymous",
	}
}

// Open implements Opener.
func (o *SchemeOpener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // "C:\..." is a path
		return openFile(location)
	}

	switch u.Scheme {
	case "http", "https":
		return o.openHTTP(ctx, location)
	case "ftp":
		return o.openFTP(ctx, u)
	case "file":
		return openFile(u.Path)
	default:
		return nil, backoff.Permanent(fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		// A missing local file will not appear on retry.
		return nil, backoff.Permanent(err)
	}
	return f, nil
}

func (o *SchemeOpener) openHTTP(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		err := fmt.Errorf("HTTP error: %s", resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return resp.Body, nil
}

// ftpReader closes both the transfer and the control connection.
type ftpReader struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpReader) Close() error {
	err := r.Response.Close()
	r.conn.Quit()
	return err
}

func (o *SchemeOpener) openFTP(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	host := u.Host
	if u.Port() == "" {
		host += ":21"
	}

	conn, err := ftp.Dial(host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(o.FTPTimeout))
	if err != nil {
		return nil, fmt.Errorf("ftp dial %s: %w", host, err)
	}

	user, password := o.FTPUser, o.FTPPassword
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			password = p
		}
	}
	if err := conn.Login(user, password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp retrieve %s: %w", u.Path, err)
	}
	return &ftpReader{Response: resp, conn: conn}, nil
}
