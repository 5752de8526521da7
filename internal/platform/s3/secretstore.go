package s3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/imamik/swarmzner/internal/secrets"
)

const versionDigits = 10

// SecretStore implements secrets.Store on an S3 bucket.
//
// Layout per container:
//
//	<container>/meta.json          owner and creation time
//	<container>/acl.json           identities allowed to read
//	<container>/versions/<N>       sealed values, N zero-padded
type SecretStore struct {
	client *Client
	bucket string
}

var _ secrets.Store = (*SecretStore)(nil)

type meta struct {
	Owner   string    `json:"owner"`
	Created time.Time `json:"created"`
}

type acl struct {
	Readers []string `json:"readers"`
}

// NewSecretStore returns a store keeping all containers in bucket.
func NewSecretStore(client *Client, bucket string) *SecretStore {
	return &SecretStore{client: client, bucket: bucket}
}

func metaKey(container string) string { return path.Join(container, "meta.json") }
func aclKey(container string) string  { return path.Join(container, "acl.json") }
func versionPrefix(container string) string {
	return path.Join(container, "versions") + "/"
}
func versionKey(container string, v secrets.Version) string {
	return versionPrefix(container) + fmt.Sprintf("%0*d", versionDigits, v)
}

// translate maps backend errors onto the secrets sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case isNotFoundError(err):
		return fmt.Errorf("%w: %w", secrets.ErrNotFound, err)
	case isAccessDenied(err):
		return fmt.Errorf("%w: %w", secrets.ErrAccessDenied, err)
	default:
		return err
	}
}

func (s *SecretStore) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.client.GetObject(ctx, s.bucket, key)
	if err != nil {
		return translate(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (s *SecretStore) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return translate(s.client.PutObject(ctx, s.bucket, key, data, false))
}

// CreateContainer implements secrets.Store.
func (s *SecretStore) CreateContainer(ctx context.Context, container, owner string) error {
	if err := s.client.EnsureBucket(ctx, s.bucket); err != nil {
		return translate(err)
	}
	var m meta
	err := s.getJSON(ctx, metaKey(container), &m)
	if err == nil {
		return nil
	}
	if !errors.Is(err, secrets.ErrNotFound) {
		return err
	}
	if err := s.putJSON(ctx, aclKey(container), acl{Readers: []string{}}); err != nil {
		return err
	}
	return s.putJSON(ctx, metaKey(container), meta{Owner: owner, Created: time.Now().UTC()})
}

// Owner implements secrets.Store.
func (s *SecretStore) Owner(ctx context.Context, container string) (string, error) {
	var m meta
	if err := s.getJSON(ctx, metaKey(container), &m); err != nil {
		return "", err
	}
	return m.Owner, nil
}

func (s *SecretStore) versions(ctx context.Context, container string) ([]secrets.Version, error) {
	keys, err := s.client.ListKeys(ctx, s.bucket, versionPrefix(container))
	if err != nil {
		return nil, translate(err)
	}
	var out []secrets.Version
	for _, k := range keys {
		n, err := strconv.ParseInt(strings.TrimPrefix(k, versionPrefix(container)), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, secrets.Version(n))
	}
	slices.Sort(out)
	return out, nil
}

// AddVersion implements secrets.Store.
func (s *SecretStore) AddVersion(ctx context.Context, container string, value []byte) (secrets.Version, error) {
	if _, err := s.Owner(ctx, container); err != nil {
		return 0, err
	}
	vs, err := s.versions(ctx, container)
	if err != nil {
		return 0, err
	}
	next := secrets.Version(1)
	if len(vs) > 0 {
		next = vs[len(vs)-1] + 1
	}
	if err := s.client.PutObject(ctx, s.bucket, versionKey(container, next), value, true); err != nil {
		if isPreconditionFailed(err) {
			return 0, fmt.Errorf("version %d was written concurrently: %w", next, err)
		}
		return 0, translate(err)
	}
	return next, nil
}

// LatestVersion implements secrets.Store.
func (s *SecretStore) LatestVersion(ctx context.Context, container string) (secrets.Version, error) {
	vs, err := s.versions(ctx, container)
	if err != nil {
		return 0, err
	}
	if len(vs) == 0 {
		return 0, secrets.ErrNotFound
	}
	return vs[len(vs)-1], nil
}

// ReadLatest implements secrets.Store.
func (s *SecretStore) ReadLatest(ctx context.Context, container string) ([]byte, secrets.Version, error) {
	v, err := s.LatestVersion(ctx, container)
	if err != nil {
		return nil, 0, err
	}
	data, err := s.client.GetObject(ctx, s.bucket, versionKey(container, v))
	if err != nil {
		return nil, 0, translate(err)
	}
	return data, v, nil
}

// GrantRead implements secrets.Store.
func (s *SecretStore) GrantRead(ctx context.Context, container, identity string) error {
	var r acl
	if err := s.getJSON(ctx, aclKey(container), &r); err != nil {
		return err
	}
	if slices.Contains(r.Readers, identity) {
		return nil
	}
	r.Readers = append(r.Readers, identity)
	slices.Sort(r.Readers)
	return s.putJSON(ctx, aclKey(container), r)
}

// CanRead implements secrets.Store.
func (s *SecretStore) CanRead(ctx context.Context, container, identity string) (bool, error) {
	var r acl
	if err := s.getJSON(ctx, aclKey(container), &r); err != nil {
		return false, err
	}
	return slices.Contains(r.Readers, identity), nil
}

// DeleteContainer implements secrets.Store.
func (s *SecretStore) DeleteContainer(ctx context.Context, container string) error {
	keys, err := s.client.ListKeys(ctx, s.bucket, container+"/")
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return translate(err)
	}
	var errs []error
	for _, k := range keys {
		if err := s.client.DeleteObject(ctx, s.bucket, k); err != nil {
			errs = append(errs, translate(err))
		}
	}
	return errors.Join(errs...)
}
