package runtime

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"
)

// Structural hashing. Two nodes that are SameQ always hash equal; packed
// arrays hash like the List they unpack to.

const (
	hashTagInt byte = iota + 1
	hashTagBigInt
	hashTagReal
	hashTagBigReal
	hashTagComplex
	hashTagRational
	hashTagString
	hashTagSymbol
	hashTagNormal
	hashTagError
	hashTagAssoc
	hashTagNumericArray
	hashTagSpecialReal
)

const listSymbolName = systemContext + "List"

func nodeHash(n *node) uint64 {
	if n.hashed {
		return n.hash
	}
	h := xxh3.New()
	writeNodeHash(h, n)
	n.hash = h.Sum64()
	n.hashed = true
	return n.hash
}

func writeNodeHash(h *xxh3.Hasher, n *node) {
	var buf [9]byte
	putU64 := func(tag byte, v uint64) {
		buf[0] = tag
		binary.LittleEndian.PutUint64(buf[1:], v)
		h.Write(buf[:])
	}
	putString := func(tag byte, s string) {
		putU64(tag, uint64(len(s)))
		h.WriteString(s)
	}

	switch n.typ {
	case TypeNumber:
		switch n.num {
		case MachineInteger:
			putU64(hashTagInt, uint64(n.i))
		case BigInteger:
			putString(hashTagBigInt, n.big.String())
		case MachineReal:
			putU64(hashTagReal, math.Float64bits(n.f))
		case BigReal:
			putString(hashTagBigReal, n.dec.String())
		case ComplexNumber, RationalNumber:
			tag := hashTagComplex
			if n.num == RationalNumber {
				tag = hashTagRational
			}
			putU64(tag, 2)
			putU64(hashTagInt, nodeHash(n.args[0]))
			putU64(hashTagInt, nodeHash(n.args[1]))
		default:
			putU64(hashTagSpecialReal, uint64(n.num))
		}
	case TypeString:
		putString(hashTagString, n.str)
	case TypeSymbol:
		putString(hashTagSymbol, n.str)
	case TypeNormal:
		putU64(hashTagNormal, uint64(len(n.args)))
		putU64(hashTagInt, nodeHash(n.head))
		for _, a := range n.args {
			putU64(hashTagInt, nodeHash(a))
		}
	case TypePackedArray:
		l := n.packed.length()
		putU64(hashTagNormal, uint64(l))
		putU64(hashTagInt, nodeHash(symbolNode(listSymbolName)))
		for i := 0; i < l; i++ {
			putU64(hashTagInt, nodeHash(n.packed.element(i)))
		}
	case TypeAssociation:
		putU64(hashTagAssoc, uint64(n.assoc.length()))
		for i, k := range n.assoc.keys {
			putU64(hashTagInt, nodeHash(k))
			putU64(hashTagInt, nodeHash(n.assoc.vals[i]))
		}
	case TypeNumericArray:
		putU64(hashTagNumericArray, uint64(n.narr.Type()))
		h.Write(n.narr.RawBytes())
	case TypeError:
		putU64(hashTagError, uint64(n.err))
	default:
		putU64(0, uint64(n.typ))
	}
}

// sameNode is structural identity, not numeric equality: 1 and 1.0 differ.
func sameNode(a, b *node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.typ == TypePackedArray || b.typ == TypePackedArray {
		return samePacked(a, b)
	}
	if a.typ != b.typ {
		return false
	}
	if nodeHash(a) != nodeHash(b) {
		return false
	}
	switch a.typ {
	case TypeNumber:
		if a.num != b.num {
			return false
		}
		switch a.num {
		case MachineInteger:
			return a.i == b.i
		case BigInteger:
			return a.big.Cmp(b.big) == 0
		case MachineReal:
			return math.Float64bits(a.f) == math.Float64bits(b.f)
		case BigReal:
			return a.dec.Cmp(b.dec) == 0 && a.dec.Exponent == b.dec.Exponent
		case ComplexNumber, RationalNumber:
			return sameNode(a.args[0], b.args[0]) && sameNode(a.args[1], b.args[1])
		}
		return true
	case TypeString, TypeSymbol:
		return a.str == b.str
	case TypeNormal:
		if len(a.args) != len(b.args) || !sameNode(a.head, b.head) {
			return false
		}
		for i := range a.args {
			if !sameNode(a.args[i], b.args[i]) {
				return false
			}
		}
		return true
	case TypeAssociation:
		if a.assoc.length() != b.assoc.length() {
			return false
		}
		for i := range a.assoc.keys {
			if !sameNode(a.assoc.keys[i], b.assoc.keys[i]) || !sameNode(a.assoc.vals[i], b.assoc.vals[i]) {
				return false
			}
		}
		return true
	case TypeNumericArray:
		return a.narr.Equal(b.narr)
	case TypeError:
		return a.err == b.err
	}
	return false
}

// samePacked compares when at least one side is a packed array.
func samePacked(a, b *node) bool {
	if a.length() != b.length() {
		return false
	}
	if a.typ != TypePackedArray && !a.hasHead(listSymbolName) {
		return false
	}
	if b.typ != TypePackedArray && !b.hasHead(listSymbolName) {
		return false
	}
	for i := 1; i <= a.length(); i++ {
		x, _ := a.partAt(i, nil)
		y, _ := b.partAt(i, nil)
		if !sameNode(x, y) {
			return false
		}
	}
	return true
}
