package s0_data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/wonny/aegis-signals/internal/contracts"
	"github.com/wonny/aegis-signals/pkg/httputil"
)

// IndexFile lists the CSV file names served under the base URL
const IndexFile = "index.json"

// HTTPSource loads `{code}-{name}.csv` files from a static file server.
// The server publishes IndexFile: a JSON array of file names.
type HTTPSource struct {
	client  *httputil.Client
	baseURL string

	mu    sync.Mutex
	files map[string]string // code → file name (첫 매칭)
}

// NewHTTPSource creates an HTTP bar source
func NewHTTPSource(client *httputil.Client, baseURL string) *HTTPSource {
	return &HTTPSource{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *HTTPSource) fileURL(name string) string {
	return s.baseURL + "/" + url.PathEscape(name)
}

// index fetches IndexFile once per source
func (s *HTTPSource) index(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.files != nil {
		return s.files, nil
	}

	resp, err := s.client.Get(ctx, s.fileURL(IndexFile))
	if err != nil {
		return nil, fmt.Errorf("fetch index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch index: status %d", resp.StatusCode)
	}

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	sort.Strings(names)

	files := make(map[string]string, len(names))
	for _, name := range names {
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		code, _ := splitFileName(name)
		if _, ok := files[code]; code == "" || ok {
			continue
		}
		files[code] = path.Base(name)
	}

	s.files = files
	return files, nil
}

// ListCodes implements contracts.CodeLister
func (s *HTTPSource) ListCodes(ctx context.Context) ([]string, error) {
	files, err := s.index(ctx)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(files))
	for code := range files {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

// LoadSeries implements contracts.BarSource
func (s *HTTPSource) LoadSeries(ctx context.Context, code string) (*contracts.BarSeries, error) {
	files, err := s.index(ctx)
	if err != nil {
		return nil, err
	}

	name, ok := files[code]
	if !ok {
		return nil, fmt.Errorf("stock %s at %s: %w", code, s.baseURL, contracts.ErrSeriesNotFound)
	}

	resp, err := s.client.Get(ctx, s.fileURL(name))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("stock %s: %w", code, contracts.ErrSeriesNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: status %d", name, resp.StatusCode)
	}

	_, fileName := splitFileName(name)
	series, err := ParseCSV(resp.Body, code, fileName)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return series, nil
}
