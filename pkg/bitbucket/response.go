package bitbucket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PaesslerAG/jsonpath"
	"github.com/tidwall/gjson"
)

// RepositoryUUID returns the provider-assigned identifier from a raw
// repository response.
func RepositoryUUID(raw json.RawMessage) (string, error) {
	value := gjson.GetBytes(raw, "uuid")
	if !value.Exists() {
		return "", errors.New("repository response has no uuid")
	}
	return value.String(), nil
}

// PullRequestID returns the pull request identifier from a raw pull request
// response.
func PullRequestID(raw json.RawMessage) (int64, error) {
	value := gjson.GetBytes(raw, "id")
	if !value.Exists() {
		return 0, errors.New("pull request response has no id")
	}
	return value.Int(), nil
}

// CloneURLs lists the clone endpoints advertised in a raw repository
// response.
func CloneURLs(raw json.RawMessage) ([]string, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	matches, err := jsonpath.Get("$.links.clone[*].href", doc)
	if err != nil {
		return nil, fmt.Errorf("repository response has no clone links: %w", err)
	}
	items, ok := matches.([]interface{})
	if !ok || len(items) == 0 {
		return nil, errors.New("repository response has no clone links")
	}
	urls := make([]string, 0, len(items))
	for _, item := range items {
		href, ok := item.(string)
		if !ok || href == "" {
			return nil, errors.New("repository clone link is not a string")
		}
		urls = append(urls, href)
	}
	return urls, nil
}
