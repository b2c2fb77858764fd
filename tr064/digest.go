package tr064

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
)

// digestAuth is a http.RoundTripper that answers HTTP digest challenges
// (RFC 2617, MD5 with qop=auth). The request body is buffered so it can be
// replayed after a 401 response.
type digestAuth struct {
	username string
	password string
	next     http.RoundTripper
}

func (a *digestAuth) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = ioutil.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = ioutil.NopCloser(bytes.NewReader(body))
	}
	resp, err := a.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	challenge := resp.Header.Get("Www-Authenticate")
	if !strings.HasPrefix(strings.ToLower(challenge), "digest ") {
		return resp, nil
	}
	// drain the 401 so the connection can be reused
	io.Copy(ioutil.Discard, io.LimitReader(resp.Body, responseSizeLimit))
	resp.Body.Close()

	params := parseChallenge(challenge[len("digest "):])
	auth, err := a.answer(req, params)
	if err != nil {
		return nil, err
	}
	retry := req.Clone(req.Context())
	if body != nil {
		retry.Body = ioutil.NopCloser(bytes.NewReader(body))
	}
	retry.Header.Set("Authorization", auth)
	return a.next.RoundTrip(retry)
}

// answer builds the Authorization header value for a parsed challenge.
func (a *digestAuth) answer(req *http.Request, params map[string]string) (string, error) {
	realm := params["realm"]
	nonce := params["nonce"]
	if nonce == "" {
		return "", errorf(KindProtocol, "Digest challenge without nonce")
	}
	qop := params["qop"]
	if qop != "" && !containsToken(qop, "auth") {
		return "", errorf(KindProtocol, "Unsupported digest qop: %s", qop)
	}
	cnonce, err := newCnonce()
	if err != nil {
		return "", err
	}
	uri := req.URL.RequestURI()
	ha1 := hashMD5(a.username + ":" + realm + ":" + a.password)
	ha2 := hashMD5(req.Method + ":" + uri)
	var response string
	if qop == "" {
		response = hashMD5(ha1 + ":" + nonce + ":" + ha2)
	} else {
		response = hashMD5(ha1 + ":" + nonce + ":00000001:" + cnonce + ":auth:" + ha2)
	}
	var b strings.Builder
	fmt.Fprintf(&b, `Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		a.username, realm, nonce, uri, response)
	if qop != "" {
		fmt.Fprintf(&b, `, qop=auth, nc=00000001, cnonce="%s"`, cnonce)
	}
	if opaque := params["opaque"]; opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, opaque)
	}
	if alg := params["algorithm"]; alg != "" {
		fmt.Fprintf(&b, `, algorithm=%s`, alg)
	}
	return b.String(), nil
}

// parseChallenge splits the comma separated key=value pairs of a digest
// challenge. Values may be quoted.
func parseChallenge(s string) map[string]string {
	params := map[string]string{}
	for _, part := range splitChallenge(s) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		value := strings.TrimSpace(kv[1])
		value = strings.Trim(value, `"`)
		params[key] = value
	}
	return params
}

// splitChallenge splits on commas outside of quoted strings.
func splitChallenge(s string) []string {
	var parts []string
	var b strings.Builder
	quoted := false
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			b.WriteRune(r)
		case r == ',' && !quoted:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		parts = append(parts, b.String())
	}
	return parts
}

func containsToken(list, token string) bool {
	for _, t := range strings.Split(list, ",") {
		if strings.TrimSpace(t) == token {
			return true
		}
	}
	return false
}

func hashMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", wrapf(KindTransport, err, "Generating client nonce failed")
	}
	return hex.EncodeToString(b), nil
}
