package internal

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sagarc03/remotestore"
)

var encOptions = cbor.EncOptions{
	Sort:        cbor.SortCanonical,
	Time:        cbor.TimeUnixMicro,
	TimeTag:     cbor.EncTagNone,
	IndefLength: cbor.IndefLengthForbidden,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	MaxArrayElements: 10000,
	MaxMapPairs:      10000,
	MaxNestedLevels:  16,
	IndefLength:      cbor.IndefLengthForbidden,
	DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	TimeTag:          cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

type objectRecord struct {
	ContentType  string `cbor:"1,keyasint"`
	Content      []byte `cbor:"2,keyasint,omitempty"`
	Binary       bool   `cbor:"3,keyasint,omitempty"`
	ETag         string `cbor:"4,keyasint"`
	Size         int64  `cbor:"5,keyasint"`
	LastModified int64  `cbor:"6,keyasint"`
}

type directoryRecord struct {
	LastModified int64 `cbor:"1,keyasint"`
}

type grantRecord struct {
	Grants []string `cbor:"1,keyasint"`
}

// Millis converts t to the Unix millisecond timestamps records carry.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts a stored timestamp back to UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// EncodeMillis renders a timestamp as the 8-byte big-endian value of an index entry.
func EncodeMillis(t time.Time) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(Millis(t))) //nolint:gosec // timestamps are positive
}

func DecodeMillis(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, fmt.Errorf("decode timestamp: want 8 bytes, got %d", len(b))
	}
	return FromMillis(int64(binary.BigEndian.Uint64(b))), nil //nolint:gosec // written by EncodeMillis
}

func EncodeObject(obj remotestore.StorageObject) ([]byte, error) {
	data, err := em.Marshal(objectRecord{
		ContentType:  obj.ContentType,
		Content:      obj.Content,
		Binary:       obj.Binary,
		ETag:         obj.ETag,
		Size:         obj.Size,
		LastModified: Millis(obj.LastModified),
	})
	if err != nil {
		return nil, fmt.Errorf("encode object: %w", err)
	}
	return data, nil
}

func DecodeObject(owner, path string, data []byte) (remotestore.StorageObject, error) {
	var rec objectRecord
	if err := dm.Unmarshal(data, &rec); err != nil {
		return remotestore.StorageObject{}, fmt.Errorf("decode object %s: %w", path, err)
	}
	return remotestore.StorageObject{
		Owner:        owner,
		Path:         path,
		ContentType:  rec.ContentType,
		Content:      rec.Content,
		Binary:       rec.Binary,
		ETag:         rec.ETag,
		Size:         rec.Size,
		LastModified: FromMillis(rec.LastModified),
	}, nil
}

func EncodeDirectory(node remotestore.DirectoryNode) ([]byte, error) {
	data, err := em.Marshal(directoryRecord{LastModified: Millis(node.LastModified)})
	if err != nil {
		return nil, fmt.Errorf("encode directory: %w", err)
	}
	return data, nil
}

func DecodeDirectory(owner, path string, data []byte) (remotestore.DirectoryNode, error) {
	var rec directoryRecord
	if err := dm.Unmarshal(data, &rec); err != nil {
		return remotestore.DirectoryNode{}, fmt.Errorf("decode directory %q: %w", path, err)
	}
	return remotestore.DirectoryNode{Owner: owner, Path: path, LastModified: FromMillis(rec.LastModified)}, nil
}

func EncodeGrant(grant remotestore.ScopeGrant) ([]byte, error) {
	data, err := em.Marshal(grantRecord{Grants: remotestore.GrantStrings(grant.Grants)})
	if err != nil {
		return nil, fmt.Errorf("encode grant: %w", err)
	}
	return data, nil
}

func DecodeGrant(owner, token string, data []byte) (remotestore.ScopeGrant, error) {
	var rec grantRecord
	if err := dm.Unmarshal(data, &rec); err != nil {
		return remotestore.ScopeGrant{}, fmt.Errorf("decode grant: %w", err)
	}
	grants, err := remotestore.ParseGrants(rec.Grants)
	if err != nil {
		return remotestore.ScopeGrant{}, fmt.Errorf("decode grant: %w", err)
	}
	return remotestore.ScopeGrant{Owner: owner, Token: token, Grants: grants}, nil
}
