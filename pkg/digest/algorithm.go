package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha512"
	"hash"
	"sort"
	"strings"

	"github.com/minio/sha256-simd"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"

	"github.com/jacktea/xgsum/pkg/xerrors"
)

// Algorithm names a supported streaming digest.
type Algorithm string

const (
	MD5     Algorithm = "md5"
	SHA1    Algorithm = "sha1"
	SHA256  Algorithm = "sha256"
	SHA512  Algorithm = "sha512"
	SHA3256 Algorithm = "sha3-256"
	BLAKE3  Algorithm = "blake3"
	XXH3    Algorithm = "xxh3"
)

var constructors = map[Algorithm]func() hash.Hash{
	MD5:     md5.New,
	SHA1:    sha1.New,
	SHA256:  sha256.New,
	SHA512:  sha512.New,
	SHA3256: sha3.New256,
	BLAKE3:  func() hash.Hash { return blake3.New(32, nil) },
	XXH3:    func() hash.Hash { return xxh3.New() },
}

// ParseAlgorithm resolves a case-insensitive algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if alg == "" {
		return MD5, nil
	}
	if _, ok := constructors[alg]; !ok {
		return "", xerrors.E(xerrors.KindInvalid, "parse algorithm", name)
	}
	return alg, nil
}

// Algorithms lists supported algorithm names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(constructors))
	for alg := range constructors {
		names = append(names, string(alg))
	}
	sort.Strings(names)
	return names
}

// Size returns the digest length in bytes.
func (a Algorithm) Size() int {
	ctor, ok := constructors[a]
	if !ok {
		return 0
	}
	return ctor().Size()
}

func newHash(alg Algorithm) hash.Hash {
	return constructors[alg]()
}
