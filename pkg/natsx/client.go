package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// NewClient connects to the NATS server named by the KESTREL_NATS_URL
// environment variable, falling back to the default URL when unset. The
// connection is configured with a client name "kestrel" and compression
// enabled unless options are provided.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name("kestrel"), nats.Compression(true))
	}
	url := os.Getenv("KESTREL_NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	return nats.Connect(url, opts...)
}
