package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const maxEventBytes = 1 << 20

var errStreamClosed = errors.New("realtime stream closed by server")

// RTDBSource follows a realtime-database REST event stream (text/event-stream
// with put/patch events) and emits the document at path after every change.
type RTDBSource struct {
	endpoint   string
	httpClient *http.Client
}

// NewRTDBSource streams baseURL/path.json, authenticating with authKey when set.
func NewRTDBSource(baseURL, path, authKey string) (*RTDBSource, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/" + strings.Trim(path, "/") + ".json")
	if err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}
	if authKey != "" {
		q := u.Query()
		q.Set("auth", authKey)
		u.RawQuery = q.Encode()
	}
	return &RTDBSource{endpoint: u.String(), httpClient: &http.Client{}}, nil
}

type rtdbEvent struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

func (s *RTDBSource) Subscribe(ctx context.Context, emit func(Payload)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("open realtime stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("open realtime stream: status %d", resp.StatusCode)
	}

	doc := map[string]any{}
	var event, data string

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventBytes)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if event == "" {
				continue
			}
			next, changed, err := applyEvent(doc, event, data)
			event, data = "", ""
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			doc = next
			p, err := decodeDoc(doc)
			if err != nil {
				return err
			}
			emit(p)
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read realtime stream: %w", err)
	}
	return errStreamClosed
}

// applyEvent folds one server event into doc.
func applyEvent(doc map[string]any, event, data string) (map[string]any, bool, error) {
	switch event {
	case "put", "patch":
	case "keep-alive":
		return doc, false, nil
	case "cancel", "auth_revoked":
		return doc, false, fmt.Errorf("realtime stream %s: %s", event, data)
	default:
		return doc, false, nil
	}

	var ev rtdbEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return doc, false, fmt.Errorf("decode %s event: %w", event, err)
	}
	var value any
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &value); err != nil {
			return doc, false, fmt.Errorf("decode %s data: %w", event, err)
		}
	}

	if event == "put" {
		return setAt(doc, splitPath(ev.Path), value), true, nil
	}
	fields, ok := value.(map[string]any)
	if !ok {
		return doc, false, fmt.Errorf("patch at %q is not an object", ev.Path)
	}
	base := splitPath(ev.Path)
	for k, v := range fields {
		doc = setAt(doc, append(append([]string{}, base...), splitPath(k)...), v)
	}
	return doc, true, nil
}

func splitPath(p string) []string {
	var out []string
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// setAt stores v under the key path; a nil v deletes it. An empty path
// replaces the whole document.
func setAt(doc map[string]any, path []string, v any) map[string]any {
	if len(path) == 0 {
		m, _ := v.(map[string]any)
		if m == nil {
			m = map[string]any{}
		}
		return m
	}
	cur := doc
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	last := path[len(path)-1]
	if v == nil {
		delete(cur, last)
	} else {
		cur[last] = v
	}
	return doc
}

func decodeDoc(doc map[string]any) (Payload, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return Payload{}, err
	}
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Payload{}, fmt.Errorf("decode reading document: %w", err)
	}
	return p, nil
}
