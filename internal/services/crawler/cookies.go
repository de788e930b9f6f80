package crawler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
)

// persistedCookie is the JSON-on-disk shape for one cookie, per spec
// §4.6's "cookies persisted between runs in a JSON file under the tenant
// directory" requirement.
type persistedCookie struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
	Value  string `json:"value"`
	Path   string `json:"path"`
}

// LoadCookies reads a tenant's cookie jar file, returning an empty slice
// if it does not yet exist.
func LoadCookies(path string) ([]persistedCookie, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cookies []persistedCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, err
	}
	return cookies, nil
}

// SaveCookies writes the current cookie jar for baseURL out to path.
func SaveCookies(path string, jar http.CookieJar, baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return err
	}
	var out []persistedCookie
	for _, c := range jar.Cookies(u) {
		out = append(out, persistedCookie{Domain: u.Host, Name: c.Name, Value: c.Value, Path: c.Path})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyCookies seeds jar with previously persisted cookies for baseURL.
func ApplyCookies(jar http.CookieJar, baseURL string, cookies []persistedCookie) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return err
	}
	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		httpCookies = append(httpCookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path})
	}
	jar.SetCookies(u, httpCookies)
	return nil
}
