package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/insolvia/case-audit/internal/core/domain"
)

// Retriever searches evidence corpora stored as Qdrant collections, one
// collection per corpus. Case corpora are filtered server-side by case_id so
// chunks from other cases never reach the pipeline; shared corpora (statute
// texts, commentary) carry no case payload and are searched unfiltered.
type Retriever struct {
	baseURL    string
	httpClient *http.Client
	caseScoped map[string]bool
}

func New(baseURL string, caseScopedCorpora []string) *Retriever {
	scoped := make(map[string]bool, len(caseScopedCorpora))
	for _, corpus := range caseScopedCorpora {
		scoped[corpus] = true
	}
	return &Retriever{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		caseScoped: scoped,
	}
}

func (r *Retriever) Search(
	ctx context.Context,
	corpus, caseID string,
	queryVector []float32,
	limit int,
) ([]domain.EvidenceChunk, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if r.caseScoped[corpus] {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key": "case_id",
					"match": map[string]any{
						"value": caseID,
					},
				},
			},
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", r.baseURL, corpus)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant search status: %s", resp.Status)
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.EvidenceChunk, 0, len(searchResp.Result))
	for _, item := range searchResp.Result {
		out = append(out, domain.EvidenceChunk{
			ChunkID:   fmt.Sprintf("%v", item.ID),
			Corpus:    corpus,
			Text:      getStringPayload(item.Payload, "text"),
			Score:     item.Score,
			SourceRef: getStringPayload(item.Payload, "source_ref"),
		})
	}
	return out, nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
