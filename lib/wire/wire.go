// Package wire implements the portable encodings of expressions: a binary
// file format built on canonical CBOR with optional zstd compression, and
// the ExpressionJSON text form. The package knows nothing about runtimes;
// callers convert their expressions to and from Node trees.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Kind identifies the shape of a Node.
type Kind uint8

const (
	KindInteger      Kind = 1
	KindBigInteger   Kind = 2
	KindReal         Kind = 3
	KindBigReal      Kind = 4
	KindComplex      Kind = 5
	KindRational     Kind = 6
	KindString       Kind = 7
	KindSymbol       Kind = 8
	KindNormal       Kind = 9
	KindAssociation  Kind = 10
	KindPackedInts   Kind = 11
	KindPackedReals  Kind = 12
	KindNumericArray Kind = 13
)

// Node is the serialized form of one expression.
//
// Reals travel as IEEE-754 bit patterns so NaN payloads and negative zero
// survive a round trip. Strings that are not valid UTF-8 travel as a CBOR
// byte string in Raw, since text strings must be valid UTF-8. Big integers
// and big reals travel as text. Complex
// and rational numbers keep their two parts in Args, and associations
// alternate keys and values in Args.
type Node struct {
	Kind  Kind     `cbor:"1,keyasint"`
	Int   int64    `cbor:"2,keyasint,omitempty"`
	Bits  uint64   `cbor:"3,keyasint,omitempty"`
	Text  string   `cbor:"4,keyasint,omitempty"`
	Head  *Node    `cbor:"5,keyasint,omitempty"`
	Args  []*Node  `cbor:"6,keyasint,omitempty"`
	Ints  []int64  `cbor:"7,keyasint,omitempty"`
	Reals []uint64 `cbor:"8,keyasint,omitempty"`
	Dims  []int    `cbor:"9,keyasint,omitempty"`
	Raw   []byte   `cbor:"10,keyasint,omitempty"`
}

// TextNode builds a string or symbol node carrying s exactly.
func TextNode(k Kind, s string) *Node {
	if !utf8.ValidString(s) {
		return &Node{Kind: k, Raw: []byte(s)}
	}
	return &Node{Kind: k, Text: s}
}

// Str returns the text of a string or symbol node.
func (n *Node) Str() string {
	if n.Raw != nil && (n.Kind == KindString || n.Kind == KindSymbol) {
		return string(n.Raw)
	}
	return n.Text
}

// File header: magic, format version, flags.
const (
	Magic   = "WLRX"
	Version = 1

	flagZstd = 1 << 0

	// compressAbove is the payload size beyond which payloads are
	// compressed.
	compressAbove = 4 << 10
)

var (
	ErrBadMagic   = errors.New("wire: not an expression file")
	ErrBadVersion = errors.New("wire: unsupported format version")
	ErrCorrupt    = errors.New("wire: corrupt payload")
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	// Expressions nest two CBOR levels per expression level and packed
	// arrays can be long, so the decoder limits are raised to their maxima.
	dm, err := cbor.DecOptions{
		MaxNestedLevels:  65535,
		MaxArrayElements: 2147483647,
		MaxMapPairs:      2147483647,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create zstd encoder: %v", err))
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(1<<30))
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create zstd decoder: %v", err))
	}
}

// MarshalNode returns the bare canonical CBOR encoding of n.
func MarshalNode(n *Node) ([]byte, error) {
	return cborEncMode.Marshal(n)
}

// UnmarshalNode decodes bare CBOR produced by MarshalNode.
func UnmarshalNode(data []byte) (*Node, error) {
	var n Node
	if err := cborDecMode.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := n.validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

// Encode produces a complete file image: header followed by the payload,
// compressed when large.
func Encode(n *Node) ([]byte, error) {
	payload, err := MarshalNode(n)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	var flags byte
	if len(payload) > compressAbove {
		payload = zstdEncoder.EncodeAll(payload, nil)
		flags |= flagZstd
	}
	out := make([]byte, 0, len(Magic)+2+len(payload))
	out = append(out, Magic...)
	out = append(out, Version, flags)
	return append(out, payload...), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*Node, error) {
	if len(data) < len(Magic)+2 || !bytes.Equal(data[:len(Magic)], []byte(Magic)) {
		return nil, ErrBadMagic
	}
	version, flags := data[len(Magic)], data[len(Magic)+1]
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	if flags&^flagZstd != 0 {
		return nil, fmt.Errorf("%w: unknown flags %#x", ErrCorrupt, flags)
	}
	payload := data[len(Magic)+2:]
	if flags&flagZstd != 0 {
		var err error
		payload, err = zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	}
	return UnmarshalNode(payload)
}

// Compressed reports whether an encoded image carries a compressed
// payload.
func Compressed(data []byte) bool {
	return len(data) >= len(Magic)+2 && data[len(Magic)+1]&flagZstd != 0
}

// validate checks the structural rules a decoder cannot enforce by type.
func (n *Node) validate() error {
	switch n.Kind {
	case KindInteger, KindReal, KindPackedInts, KindPackedReals:
	case KindBigInteger, KindBigReal, KindString, KindSymbol:
	case KindComplex, KindRational:
		if len(n.Args) != 2 {
			return fmt.Errorf("%w: %d parts in a %s", ErrCorrupt, len(n.Args), n.Kind)
		}
	case KindNormal:
		if n.Head == nil {
			return fmt.Errorf("%w: normal expression without head", ErrCorrupt)
		}
		if err := n.Head.validate(); err != nil {
			return err
		}
	case KindAssociation:
		if len(n.Args)%2 != 0 {
			return fmt.Errorf("%w: odd association entry count", ErrCorrupt)
		}
	case KindNumericArray:
		if len(n.Dims) == 0 {
			return fmt.Errorf("%w: numeric array without dimensions", ErrCorrupt)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrCorrupt, n.Kind)
	}
	for _, a := range n.Args {
		if a == nil {
			return fmt.Errorf("%w: missing part", ErrCorrupt)
		}
		if err := a.validate(); err != nil {
			return err
		}
	}
	return nil
}

var kindNames = map[Kind]string{
	KindInteger:      "integer",
	KindBigInteger:   "big integer",
	KindReal:         "real",
	KindBigReal:      "big real",
	KindComplex:      "complex",
	KindRational:     "rational",
	KindString:       "string",
	KindSymbol:       "symbol",
	KindNormal:       "normal",
	KindAssociation:  "association",
	KindPackedInts:   "packed integers",
	KindPackedReals:  "packed reals",
	KindNumericArray: "numeric array",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}
