package tokens

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestPrepareBearer(t *testing.T) {
	in := http.Header{"Accept": []string{"application/json"}}

	out := PrepareBearerHeaders("t1", in)
	if got := out.Get("Authorization"); got != "Bearer t1" {
		t.Errorf("Authorization = %q; want %q", got, "Bearer t1")
	}
	if in.Get("Authorization") != "" {
		t.Error("PrepareBearerHeaders mutated its input")
	}
	if out.Get("Accept") != "application/json" {
		t.Error("existing headers were dropped")
	}

	uri, err := PrepareBearerURI("t1", "https://api.example/r?x=1")
	if err != nil {
		t.Fatalf("PrepareBearerURI returned error: %v", err)
	}
	if uri != "https://api.example/r?x=1&access_token=t1" {
		t.Errorf("PrepareBearerURI() = %q", uri)
	}

	if got := PrepareBearerBody("t1", "a=b"); got != "a=b&access_token=t1" {
		t.Errorf("PrepareBearerBody() = %q", got)
	}
	if got := PrepareBearerBody("t1", ""); got != "access_token=t1" {
		t.Errorf("PrepareBearerBody() = %q", got)
	}
}

func TestPrepareMACHeader(t *testing.T) {
	req := MACRequest{
		Token:     "h480djs93hd8",
		Key:       "489dks293j39",
		Algorithm: HMACSHA1,
		Method:    "post",
		URI:       "https://example.com:8443/resource/1?b=1&a=2",
		Body:      "hello=world",
		Ext:       "a,b,c",
		Nonce:     "264095:dj83hs9s",
	}
	headers, err := PrepareMACHeader(req, nil)
	if err != nil {
		t.Fatalf("PrepareMACHeader returned error: %v", err)
	}

	bodySum := sha1.Sum([]byte("hello=world"))
	bodyHash := base64.StdEncoding.EncodeToString(bodySum[:])
	base := "264095:dj83hs9s\nPOST\n/resource/1?b=1&a=2\nexample.com\n8443\n" + bodyHash + "\na,b,c\n"
	mac := hmac.New(sha1.New, []byte("489dks293j39"))
	mac.Write([]byte(base))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	want := `MAC id="h480djs93hd8", nonce="264095:dj83hs9s", bodyhash="` + bodyHash + `", ext="a,b,c", mac="` + sig + `"`
	if got := headers.Get("Authorization"); got != want {
		t.Errorf("Authorization =\n%s\nwant\n%s", got, want)
	}
}

func TestPrepareMACHeaderSHA256NoBody(t *testing.T) {
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	headers, err := PrepareMACHeader(MACRequest{
		Token:     "tok",
		Key:       "key",
		Algorithm: HMACSHA256,
		Method:    "GET",
		URI:       "http://example.com/r",
		IssuedAt:  issued,
		Now:       issued.Add(90 * time.Second),
	}, HMACSigner{})
	if err != nil {
		t.Fatalf("PrepareMACHeader returned error: %v", err)
	}
	got := headers.Get("Authorization")
	if strings.Contains(got, "bodyhash") || strings.Contains(got, "ext=") {
		t.Errorf("unexpected optional fields in %q", got)
	}
	m := regexp.MustCompile(`nonce="(90:[A-Za-z0-9]+)"`).FindStringSubmatch(got)
	if m == nil {
		t.Fatalf("nonce does not carry the token age: %q", got)
	}
	base := m[1] + "\nGET\n/r\nexample.com\n80\n\n\n"
	mac := hmac.New(sha256.New, []byte("key"))
	mac.Write([]byte(base))
	if !strings.HasSuffix(got, `mac="`+base64.StdEncoding.EncodeToString(mac.Sum(nil))+`"`) {
		t.Errorf("signature mismatch in %q", got)
	}
}

func TestPrepareMACHeaderUnknownAlgorithm(t *testing.T) {
	_, err := PrepareMACHeader(MACRequest{
		Token: "tok", Key: "key", Algorithm: "hmac-md5", Method: "GET",
		URI: "https://example.com/", Nonce: "1:a",
	}, nil)
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Errorf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
}
