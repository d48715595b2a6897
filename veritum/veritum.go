// Package veritum implements the multi-Cube logical record from spec.md
// §4.4: split/recombine across a CONTINUED_IN chain, with optional
// per-recipient authenticated encryption. Grounded on the teacher's
// consensus/tx_parse.go multi-part assembly pattern (walk a field list,
// pack what fits, chain the remainder) and consensus/htlc.go's
// fixed-offset covenant-data parsing style for the wrapped-key directory.
package veritum

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/EliasOenal/verity-sub007/crypto"
	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/fields"
)

// relatesToOverhead is the TLV cost of one RELATES_TO field (2-byte
// header + 1-byte relationship tag + 32-byte target key).
const relatesToOverhead = 2 + 33

// Veritum is a reassembled or about-to-be-compiled multi-Cube record. Its
// Key is chunk 0's CubeKey.
type Veritum struct {
	Chunks []*cube.Cube
}

// Key returns the Veritum's key: its first chunk's CubeKey.
func (v *Veritum) Key() (cube.Key, error) {
	if len(v.Chunks) == 0 {
		return cube.Key{}, fmt.Errorf("veritum: empty")
	}
	return v.Chunks[0].GetKey()
}

// CompileOptions configures Compile. Fields is the logical payload, in
// order; whole fields are packed across as many chunks as needed, and a
// single field is never split between chunks (see pack). Per spec.md §9's
// resolution of the multi-chunk MUC/PMUC ambiguity, only chunk 0 may carry
// RootType; every continuation chunk is a plain FROZEN Cube, sidestepping
// the reference implementation's acknowledged multi-chunk MUC/PMUC bugs.
type CompileOptions struct {
	Fields             []fields.Field
	RootType           cube.Type
	SigningKey         ed25519.PrivateKey // required if RootType.IsSigned()
	RequiredDifficulty uint8

	// Recipients, if non-empty, causes Fields to be sealed into a single
	// ENCRYPTED field before chunking (see crypto.go). SenderSigningKey
	// supplies the sender's long-term key for X25519 key agreement.
	Recipients       []RecipientKey
	SenderSigningKey ed25519.PrivateKey
	Provider         crypto.Provider
}

// RecipientKey names one encryption recipient by their X25519 public key
// (already converted from their Ed25519 identity key by the caller).
type RecipientKey [32]byte

// Compile builds and mines every chunk, back to front, per spec.md §4.4.
func Compile(ctx context.Context, opts CompileOptions) (*Veritum, error) {
	body := opts.Fields
	if len(opts.Recipients) > 0 {
		sealed, err := seal(opts.Provider, opts.SenderSigningKey, opts.Recipients, body)
		if err != nil {
			return nil, fmt.Errorf("veritum: seal: %w", err)
		}
		body = []fields.Field{sealed}
	}

	bins := pack(body, opts.RootType.Definition().BodyLen(), cube.FROZEN.Definition().BodyLen())
	if len(bins) == 0 {
		bins = [][]fields.Field{nil}
	}

	chunks := make([]*cube.Cube, len(bins))
	var nextKey *cube.Key
	for i := len(bins) - 1; i >= 0; i-- {
		flds := append([]fields.Field(nil), bins[i]...)
		if nextKey != nil {
			rel, err := cube.Relationship{Type: cube.CONTINUED_IN, Target: *nextKey}.Field()
			if err != nil {
				return nil, err
			}
			flds = append(flds, rel)
		}

		t := cube.FROZEN
		var signingKey ed25519.PrivateKey
		if i == 0 {
			t = opts.RootType
			signingKey = opts.SigningKey
		}

		c, err := cube.Create(cube.CreateParams{
			Type:               t,
			Fields:             flds,
			SigningKey:         signingKey,
			RequiredDifficulty: opts.RequiredDifficulty,
		})
		if err != nil {
			return nil, fmt.Errorf("veritum: chunk %d: %w", i, err)
		}
		if err := c.Compile(ctx); err != nil {
			return nil, fmt.Errorf("veritum: chunk %d: compile: %w", i, err)
		}
		k, err := c.GetKey()
		if err != nil {
			return nil, err
		}
		chunks[i] = c
		nextKey = &k
	}

	return &Veritum{Chunks: chunks}, nil
}

// pack greedily bins whole fields into chunks, reserving relatesToOverhead
// bytes in every chunk for a CONTINUED_IN pointer (the last chunk is only
// known to be last once packing completes, so a chunk that turns out to be
// the tail simply has a little unused capacity left over, filled by
// PADDING). A field is never split: one that does not fit the room left
// starts a new chunk, and one larger than the limit gets a chunk to itself,
// whose Compile fails if the field and any CONTINUED_IN pointer together
// overflow the body.
func pack(body []fields.Field, rootBodyLen, chunkBodyLen int) [][]fields.Field {
	if len(body) == 0 {
		return nil
	}
	var bins [][]fields.Field
	cur := make([]fields.Field, 0, 8)
	used := 0
	capacity := rootBodyLen
	for _, f := range body {
		cost := 2 + len(f.Value)
		limit := capacity - relatesToOverhead
		if used > 0 && used+cost > limit {
			bins = append(bins, cur)
			cur = make([]fields.Field, 0, 8)
			used = 0
			capacity = chunkBodyLen
			limit = capacity - relatesToOverhead
		}
		cur = append(cur, f)
		used += cost
	}
	bins = append(bins, cur)
	return bins
}

// FromChunksOptions configures FromChunks.
type FromChunksOptions struct {
	RecipientPrivateKey ed25519.PrivateKey // set to attempt decryption
	Provider            crypto.Provider
}

// FromChunks concatenates payload fields across chunks in order and
// decrypts an ENCRYPTED field if present and a recipient key is supplied.
// A missing/nil chunk truncates the result rather than erroring; decryption
// fails closed if any chunk between the first and the one carrying
// ENCRYPTED is missing, since the concatenated ciphertext would be
// incomplete.
func FromChunks(chunks []*cube.Cube, opts FromChunksOptions) ([]fields.Field, error) {
	var merged []fields.Field
	index := make(map[fields.Type]int)
	for _, c := range chunks {
		if c == nil {
			break
		}
		flds, err := c.Fields()
		if err != nil {
			break
		}
		for _, f := range flds {
			switch f.Type {
			case fields.TYPE, fields.PUBLIC_KEY, fields.NOTIFY, fields.DATE,
				fields.PMUC_UPDATE_COUNT, fields.SIGNATURE, fields.NONCE,
				fields.PADDING, fields.CCI_END:
				continue
			case fields.RELATES_TO:
				rel, err := cube.RelationshipFromField(f)
				if err == nil && rel.Type == cube.CONTINUED_IN {
					continue
				}
			}
			// Concatenate consecutive same-type field values in order, so a
			// payload split across chunks reassembles into one logical
			// field (spec.md §4.4: "payload fields of all chunks
			// concatenate into the logical payload").
			if idx, ok := index[f.Type]; ok {
				merged[idx].Value = append(merged[idx].Value, f.Value...)
			} else {
				index[f.Type] = len(merged)
				merged = append(merged, fields.Field{Type: f.Type, Value: append([]byte(nil), f.Value...)})
			}
		}
	}
	out := merged

	enc, ok := fields.FirstOfType(out, fields.ENCRYPTED)
	if !ok || opts.RecipientPrivateKey == nil {
		return out, nil
	}
	plain, err := open(opts.Provider, opts.RecipientPrivateKey, enc.Value)
	if err != nil {
		return nil, fmt.Errorf("veritum: decrypt: %w", err)
	}
	return plain, nil
}
