package lake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/0xmhha/blockstream-go/types"
)

// Fetch errors
var (
	// ErrBlockNotFound indicates the object store has no block at the height.
	// Permanent for a given height; transient errors are retried instead.
	ErrBlockNotFound = errors.New("block not found in object store")

	// ErrMalformedBlock indicates an object that exists but cannot be decoded
	ErrMalformedBlock = errors.New("malformed block object")
)

// ObjectStore is the slice of the object-store API the lake reader uses.
type ObjectStore interface {
	GetObjectBytes(ctx context.Context, key string) ([]byte, error)
	ListCommonPrefixes(ctx context.Context, startAfter string) ([]string, error)
}

// S3Config holds object-store configuration.
type S3Config struct {
	// Bucket is the lake bucket name
	Bucket string

	// RequestPayer enables requester-pays access
	RequestPayer bool
}

// S3Store reads lake objects from S3.
type S3Store struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Store wraps an S3 client as an ObjectStore.
func NewS3Store(client *s3.Client, cfg S3Config) *S3Store {
	return &S3Store{client: client, cfg: cfg}
}

// GetObjectBytes reads one object in full. Missing objects map to
// ErrBlockNotFound.
func (s *S3Store) GetObjectBytes(ctx context.Context, key string) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}
	if s.cfg.RequestPayer {
		input.RequestPayer = s3types.RequestPayerRequester
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, key)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// ListCommonPrefixes lists top-level height prefixes after the given key.
func (s *S3Store) ListCommonPrefixes(ctx context.Context, startAfter string) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:     aws.String(s.cfg.Bucket),
		Delimiter:  aws.String("/"),
		StartAfter: aws.String(startAfter),
		MaxKeys:    aws.Int32(1000),
	}
	if s.cfg.RequestPayer {
		input.RequestPayer = s3types.RequestPayerRequester
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("list after %s: %w", startAfter, err)
	}

	prefixes := make([]string, 0, len(out.CommonPrefixes))
	for _, cp := range out.CommonPrefixes {
		if cp.Prefix != nil {
			prefixes = append(prefixes, strings.TrimSuffix(*cp.Prefix, "/"))
		}
	}
	return prefixes, nil
}

// HeightKey renders the zero-padded object-key prefix of a block height.
func HeightKey(height uint64) string {
	return fmt.Sprintf("%012d", height)
}

// blockManifest is the stored form of the block object: the header plus the
// shard ids whose objects follow under the same prefix.
type blockManifest struct {
	Header types.BlockHeader `json:"header"`
	Chunks []struct {
		ShardID uint64 `json:"shard_id"`
	} `json:"chunks"`
}

// ReadBlock materializes one block: the block object plus every shard object
// under its prefix, in shard-id order.
func ReadBlock(ctx context.Context, store ObjectStore, height uint64) (*types.Block, error) {
	prefix := HeightKey(height)

	raw, err := store.GetObjectBytes(ctx, prefix+"/block.json")
	if err != nil {
		return nil, err
	}

	var manifest blockManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("%w: block %d: %v", ErrMalformedBlock, height, err)
	}

	shardIDs := make([]uint64, 0, len(manifest.Chunks))
	for _, chunk := range manifest.Chunks {
		shardIDs = append(shardIDs, chunk.ShardID)
	}
	sort.Slice(shardIDs, func(i, j int) bool { return shardIDs[i] < shardIDs[j] })

	block := &types.Block{
		Header: manifest.Header,
		Shards: make([]types.Shard, 0, len(shardIDs)),
	}

	for _, shardID := range shardIDs {
		key := fmt.Sprintf("%s/shard_%d.json", prefix, shardID)
		raw, err := store.GetObjectBytes(ctx, key)
		if err != nil {
			return nil, err
		}

		var shard types.Shard
		if err := json.Unmarshal(raw, &shard); err != nil {
			return nil, fmt.Errorf("%w: block %d shard %d: %v", ErrMalformedBlock, height, shardID, err)
		}
		block.Shards = append(block.Shards, shard)
	}

	return block, nil
}

// LatestHeight walks the height prefixes from a hint forward and returns the
// last one present. The hint avoids listing the whole bucket; zero starts
// from the beginning.
func LatestHeight(ctx context.Context, store ObjectStore, hint uint64) (uint64, error) {
	startAfter := ""
	if hint > 0 {
		startAfter = HeightKey(hint)
	}

	var latest uint64
	found := false
	for {
		prefixes, err := store.ListCommonPrefixes(ctx, startAfter)
		if err != nil {
			return 0, err
		}
		if len(prefixes) == 0 {
			break
		}

		last := prefixes[len(prefixes)-1]
		height, err := strconv.ParseUint(last, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unexpected prefix %q: %w", last, err)
		}
		latest = height
		found = true
		startAfter = HeightKey(height) + "/"
	}

	if !found {
		if hint > 0 {
			// Nothing after the hint: the hint itself is the tip.
			return hint, nil
		}
		return 0, ErrBlockNotFound
	}
	return latest, nil
}
