package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"time"
)

// cookieFile keeps the API session cookies between invocations. The jar only
// exposes name and value for a URL, which is all the server reads back.
type cookieFile struct {
	path string
	base *url.URL
	jar  *cookiejar.Jar
}

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func openCookies(path, baseURL string) (*cookieFile, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	cf := &cookieFile{path: path, base: u, jar: jar}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cf, nil
	}
	if err != nil {
		return nil, err
	}
	var saved []savedCookie
	if err := json.Unmarshal(data, &saved); err != nil {
		return cf, nil
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	jar.SetCookies(u, cookies)
	return cf, nil
}

func (cf *cookieFile) httpClient() *http.Client {
	return &http.Client{Jar: cf.jar, Timeout: 15 * time.Second}
}

func (cf *cookieFile) save() error {
	var saved []savedCookie
	for _, c := range cf.jar.Cookies(cf.base) {
		saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	return os.WriteFile(cf.path, data, 0o600)
}
