package oneclick

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/branched-services/go-oneclick/abis"
)

// maxDescriptorSize bounds how much of a remote descriptor is read.
const maxDescriptorSize = 4 << 20

// ABISource resolves a named interface descriptor. ref is an http(s) URL, a
// filesystem path, or empty for the built-in descriptor of that name.
type ABISource interface {
	Load(ctx context.Context, name, ref string) (abi.ABI, error)
}

// Loader is the default ABISource. Failures are returned as *AbiFetchError
// and are never retried.
type Loader struct {
	// HTTPClient is used for http(s) references. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// NewLoader creates a Loader using client for remote descriptors.
func NewLoader(client *http.Client) *Loader {
	return &Loader{HTTPClient: client}
}

// Load fetches and parses the descriptor.
func (l *Loader) Load(ctx context.Context, name, ref string) (abi.ABI, error) {
	data, err := l.read(ctx, name, ref)
	if err != nil {
		return abi.ABI{}, &AbiFetchError{Contract: name, Ref: ref, Err: err}
	}
	parsed, err := parseDescriptor(data)
	if err != nil {
		return abi.ABI{}, &AbiFetchError{Contract: name, Ref: ref, Err: err}
	}
	return parsed, nil
}

func (l *Loader) read(ctx context.Context, name, ref string) ([]byte, error) {
	switch {
	case ref == "":
		return abis.Raw(name)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return l.fetch(ctx, ref)
	default:
		return os.ReadFile(ref)
	}
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDescriptorSize))
}

// parseDescriptor accepts either a bare ABI array or a compiler artifact
// object carrying the ABI under an "abi" key.
func parseDescriptor(data []byte) (abi.ABI, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return abi.ABI{}, errors.New("empty descriptor")
	}

	if trimmed[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(trimmed, &artifact); err != nil {
			return abi.ABI{}, fmt.Errorf("decode artifact: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return abi.ABI{}, errors.New(`artifact has no "abi" field`)
		}
		trimmed = artifact.ABI
	}

	return abi.JSON(bytes.NewReader(trimmed))
}
