// internal/lobby/metadata.go
package lobby

import (
	"encoding/json"
	"strconv"

	"github.com/fusionlobby/flb/internal/platform"
)

// Metadata keys written by game clients into lobby key/value storage.
// The prefix is part of the wire format and must not change.
const (
	keyPrefix = "BONELAB_FUSION_"

	KeyHasServerOpen = keyPrefix + "HasServerOpen"
	KeyIdentifier    = keyPrefix + "Identifier"
	KeyGame          = keyPrefix + "Game"
	KeyPrivacy       = keyPrefix + "Privacy"
	KeyLobbyCode     = keyPrefix + "LobbyCode"
	KeyFull          = keyPrefix + "Full"
	KeyVersionMajor  = keyPrefix + "VersionMajor"
	KeyVersionMinor  = keyPrefix + "VersionMinor"

	// KeyRecord holds the JSON-encoded Record payload.
	KeyRecord = "LobbyInfo"
)

// trueString matches the boolean spelling game clients write ("True").
const trueString = "True"

// GameTitle is the title advertised under KeyGame by every lobby this
// service cares about.
const GameTitle = "BONELAB"

// Metadata is the decoded view of a lobby's key/value metadata. Record
// is nil when the payload was absent or unparsable; Open is forced
// false in that case so such lobbies are filtered out, never served.
type Metadata struct {
	Record *Record

	Open         bool
	Code         string
	Game         string
	Full         bool
	Privacy      Visibility
	VersionMajor int
	VersionMinor int
}

// DecodeMetadata parses a lobby's flat metadata into a Metadata. Pure:
// it only reads the provided accessor, no I/O.
func DecodeMetadata(l platform.Lobby) Metadata {
	md := Metadata{
		Open: l.Data(KeyHasServerOpen) == trueString,
		Code: l.Data(KeyLobbyCode),
		Game: l.Data(KeyGame),
		Full: l.Data(KeyFull) == trueString,
	}

	if raw, ok := l.LookupData(KeyPrivacy); ok {
		if v, err := strconv.Atoi(raw); err == nil {
			md.Privacy = Visibility(v)
		}
	}
	if raw, ok := l.LookupData(KeyVersionMajor); ok {
		if v, err := strconv.Atoi(raw); err == nil {
			md.VersionMajor = v
		}
	}
	if raw, ok := l.LookupData(KeyVersionMinor); ok {
		if v, err := strconv.Atoi(raw); err == nil {
			md.VersionMinor = v
		}
	}

	raw, ok := l.LookupData(KeyRecord)
	if !ok {
		md.Open = false
		return md
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// Garbage payload: fail closed.
		md.Open = false
		return md
	}
	rec.HostID = l.OwnerID()
	md.Record = &rec
	return md
}

// EncodeMetadata serializes a record back into the flat metadata map a
// hosting client would publish. Inverse of DecodeMetadata for the keys
// it covers; used by lobby hosts and tests.
func EncodeMetadata(rec *Record, open bool) (map[string]string, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	m := map[string]string{
		KeyIdentifier:    trueString,
		KeyGame:          GameTitle,
		KeyLobbyCode:     rec.Code,
		KeyPrivacy:       strconv.Itoa(int(rec.Privacy)),
		KeyRecord:        string(payload),
		KeyHasServerOpen: "False",
		KeyFull:          "False",
	}
	if open {
		m[KeyHasServerOpen] = trueString
	}
	if rec.Full() {
		m[KeyFull] = trueString
	}
	return m, nil
}
