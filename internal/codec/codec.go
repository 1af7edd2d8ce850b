// Package codec converts User and Group documents to and from the string form
// kept in the document store.
//
// Every document is wrapped in a versioned envelope:
//
//	{"schema":"user","version":1,"data":{...}}
//
// Documents written before the envelope existed (bare JSON, version 0) are
// upgraded on decode through the migration table.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcoot/movienight/internal/model"
)

// CurrentVersion is the document version written by Encode
const CurrentVersion = 1

const (
	schemaUser  = "user"
	schemaGroup = "group"
)

type envelope struct {
	Schema  string          `json:"schema"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// migration upgrades a document payload by exactly one version
type migration func(data json.RawMessage) (json.RawMessage, error)

var migrations = map[string]map[int]migration{
	schemaUser:  {0: upgradeUserV0},
	schemaGroup: {0: upgradeGroupV0},
}

// EncodeUser serializes a user document
func EncodeUser(u *model.User) (string, error) {
	return encode(schemaUser, userToDoc(u))
}

// DecodeUser deserializes a user document. A legacy document carries no
// username; callers fill it from the store key.
func DecodeUser(s string) (*model.User, error) {
	var doc userDoc
	if err := decode(schemaUser, s, &doc); err != nil {
		return nil, err
	}
	if doc.HashedPassword == "" || doc.Salt == "" {
		return nil, model.Ef(model.KindSerialization, "decode "+schemaUser, "missing credentials", nil)
	}
	return doc.toModel(), nil
}

// EncodeGroup serializes a group document
func EncodeGroup(g *model.Group) (string, error) {
	return encode(schemaGroup, groupToDoc(g))
}

// DecodeGroup deserializes a group document. A legacy document carries no
// id; callers fill it from the store key.
func DecodeGroup(s string) (*model.Group, error) {
	var doc groupDoc
	if err := decode(schemaGroup, s, &doc); err != nil {
		return nil, err
	}
	return doc.toModel()
}

func encode(schema string, doc any) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", model.Ef(model.KindSerialization, "encode "+schema, "marshal document", err)
	}
	out, err := json.Marshal(envelope{Schema: schema, Version: CurrentVersion, Data: data})
	if err != nil {
		return "", model.Ef(model.KindSerialization, "encode "+schema, "marshal envelope", err)
	}
	return string(out), nil
}

func decode(schema, s string, out any) error {
	op := "decode " + schema

	data, version, err := unwrap(schema, []byte(s))
	if err != nil {
		return model.E(model.KindSerialization, op, err)
	}

	for version < CurrentVersion {
		upgrade, ok := migrations[schema][version]
		if !ok {
			return model.Ef(model.KindSerialization, op, fmt.Sprintf("no migration from version %d", version), nil)
		}
		if data, err = upgrade(data); err != nil {
			return model.Ef(model.KindSerialization, op, fmt.Sprintf("migrate version %d", version), err)
		}
		version++
	}

	if err := decodeStrict(data, out); err != nil {
		return model.Ef(model.KindSerialization, op, "decode payload", err)
	}
	return nil
}

// decodeStrict decodes a single JSON value, rejecting unknown fields and
// trailing data
func decodeStrict(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after document")
	}
	return nil
}

// unwrap strips the envelope, returning the payload and its version.
// A document without an envelope is treated as version 0.
func unwrap(schema string, raw []byte) (json.RawMessage, int, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, 0, err
	}
	if fields == nil {
		return nil, 0, errors.New("document is not an object")
	}
	if _, ok := fields["schema"]; !ok {
		return raw, 0, nil
	}

	var env envelope
	if err := decodeStrict(raw, &env); err != nil {
		return nil, 0, err
	}
	if env.Schema != schema {
		return nil, 0, fmt.Errorf("schema %q, expected %q", env.Schema, schema)
	}
	if env.Version < 0 || env.Version > CurrentVersion {
		return nil, 0, fmt.Errorf("unsupported version %d", env.Version)
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil, 0, errors.New("empty payload")
	}
	return env.Data, env.Version, nil
}
