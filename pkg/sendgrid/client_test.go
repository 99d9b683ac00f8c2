package sendgrid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finxan/finxan-backend/pkg/config"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
)

type capturedMail struct {
	Personalizations []struct {
		To []struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"to"`
	} `json:"personalizations"`
	From struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"from"`
	Subject string `json:"subject"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func testConfig(baseURL string) config.SendgridConfig {
	return config.SendgridConfig{APIKey: "SG.key", DefaultFrom: "alerts@finxan.io", BaseURL: baseURL}
}

func TestSendBuildsV3Payload(t *testing.T) {
	var captured capturedMail
	var auth, path, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		method = r.Method
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL + "/"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	err = client.Send(context.Background(), Message{To: "owner@shop.io", ToName: "Owner", Subject: "Stock alert", TextBody: "Bolt is out", HTMLBody: "<p>Bolt is out</p>"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if method != http.MethodPost || path != "/v3/mail/send" || auth != "Bearer SG.key" {
		t.Fatalf("unexpected request method=%s path=%s auth=%s", method, path, auth)
	}
	if captured.From.Email != "alerts@finxan.io" || captured.From.Name != "Finxan" {
		t.Fatalf("unexpected sender %+v", captured.From)
	}
	if len(captured.Personalizations) != 1 || captured.Personalizations[0].To[0].Email != "owner@shop.io" {
		t.Fatalf("unexpected recipients %+v", captured.Personalizations)
	}
	if captured.Subject != "Stock alert" {
		t.Fatalf("unexpected subject %q", captured.Subject)
	}
	if len(captured.Content) != 2 || captured.Content[0].Type != "text/plain" || captured.Content[1].Type != "text/html" {
		t.Fatalf("text part must precede html part: %+v", captured.Content)
	}
}

func TestSendFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()
	client, err := NewClient(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	err = client.Send(context.Background(), Message{To: "a@b.c", TextBody: "x"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if err := client.Send(context.Background(), Message{To: "", TextBody: "x"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := client.Send(context.Background(), Message{To: "a@b.c"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty body, got %v", err)
	}
}

func TestSendUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(testConfig(url))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Send(context.Background(), Message{To: "a@b.c", TextBody: "x"}); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewClientRequiresKeyAndSender(t *testing.T) {
	if _, err := NewClient(config.SendgridConfig{DefaultFrom: "x@y.z"}); err == nil {
		t.Fatal("expected api key error")
	}
	if _, err := NewClient(config.SendgridConfig{APIKey: "SG.key"}); err == nil {
		t.Fatal("expected sender error")
	}
}
