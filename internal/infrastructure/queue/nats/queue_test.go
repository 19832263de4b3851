package nats

import (
	"testing"

	"github.com/nats-io/nats.go"
)

func TestRegisteredDocumentID(t *testing.T) {
	tagged := nats.NewMsg("documents.registered")
	tagged.Header.Set(eventHeader, documentRegistered)
	tagged.Data = []byte(" doc-1 ")

	bare := &nats.Msg{Subject: "documents.registered", Data: []byte("doc-2")}

	foreign := nats.NewMsg("documents.registered")
	foreign.Header.Set(eventHeader, "DocumentDeleted")
	foreign.Data = []byte("doc-3")

	empty := nats.NewMsg("documents.registered")

	cases := []struct {
		name string
		msg  *nats.Msg
		id   string
		ok   bool
	}{
		{name: "tagged", msg: tagged, id: "doc-1", ok: true},
		{name: "bare", msg: bare, id: "doc-2", ok: true},
		{name: "foreign event", msg: foreign},
		{name: "empty body", msg: empty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := registeredDocumentID(tc.msg)
			if id != tc.id || ok != tc.ok {
				t.Fatalf("registeredDocumentID() = %q, %v", id, ok)
			}
		})
	}
}
