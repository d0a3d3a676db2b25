package txn

import (
	"fmt"
	"sort"

	"github.com/mr-tron/base58"
)

// Legacy message wire layout:
//
//	header: numRequiredSignatures | numReadonlySigned | numReadonlyUnsigned
//	compact-u16 account count, then 32-byte keys in privilege order
//	32-byte recent blockhash
//	compact-u16 instruction count, then per instruction:
//	  program id index (u8)
//	  compact-u16 account index count, then u8 indexes
//	  compact-u16 data length, then data

// accountClass orders keys within the message: writable signers first
// (fee payer at index 0), then readonly signers, writable non-signers,
// readonly non-signers.
func accountClass(isSigner, isWritable bool) int {
	switch {
	case isSigner && isWritable:
		return 0
	case isSigner:
		return 1
	case isWritable:
		return 2
	default:
		return 3
	}
}

type keyEntry struct {
	key        string
	isSigner   bool
	isWritable bool
	seen       int // first-appearance order, for deterministic output
}

// collectAccounts merges every referenced key with OR-combined
// privileges. The fee payer is always the first writable signer.
func collectAccounts(instructions []Instruction, feePayer string) []keyEntry {
	index := make(map[string]int)
	var entries []keyEntry

	add := func(key string, isSigner, isWritable bool) {
		if i, ok := index[key]; ok {
			entries[i].isSigner = entries[i].isSigner || isSigner
			entries[i].isWritable = entries[i].isWritable || isWritable
			return
		}
		index[key] = len(entries)
		entries = append(entries, keyEntry{
			key:        key,
			isSigner:   isSigner,
			isWritable: isWritable,
			seen:       len(entries),
		})
	}

	add(feePayer, true, true)
	for _, ins := range instructions {
		for _, acc := range ins.Accounts {
			add(acc.PublicKey, acc.IsSigner, acc.IsWritable)
		}
	}
	// Program ids participate as readonly non-signers.
	for _, ins := range instructions {
		add(ins.ProgramID, false, false)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ci := accountClass(entries[i].isSigner, entries[i].isWritable)
		cj := accountClass(entries[j].isSigner, entries[j].isWritable)
		if ci != cj {
			return ci < cj
		}
		return entries[i].seen < entries[j].seen
	})

	return entries
}

// compileMessage serializes the legacy message and returns its bytes
// together with the ordered signer addresses.
func compileMessage(instructions []Instruction, feePayer string, blockhash string) ([]byte, []string, error) {
	entries := collectAccounts(instructions, feePayer)

	keyIndex := make(map[string]int, len(entries))
	var signers []string
	numRequired, numReadonlySigned, numReadonlyUnsigned := 0, 0, 0
	for i, e := range entries {
		keyIndex[e.key] = i
		if e.isSigner {
			numRequired++
			signers = append(signers, e.key)
			if !e.isWritable {
				numReadonlySigned++
			}
		} else if !e.isWritable {
			numReadonlyUnsigned++
		}
	}
	if len(entries) > 256 {
		return nil, nil, fmt.Errorf("too many accounts: %d", len(entries))
	}

	var msg []byte
	msg = append(msg, byte(numRequired), byte(numReadonlySigned), byte(numReadonlyUnsigned))

	msg = appendCompactU16(msg, len(entries))
	for _, e := range entries {
		raw, err := base58.Decode(e.key)
		if err != nil || len(raw) != 32 {
			return nil, nil, fmt.Errorf("account %s: not a 32-byte base58 key", e.key)
		}
		msg = append(msg, raw...)
	}

	hashRaw, err := base58.Decode(blockhash)
	if err != nil || len(hashRaw) != 32 {
		return nil, nil, fmt.Errorf("blockhash %s: not a 32-byte base58 hash", blockhash)
	}
	msg = append(msg, hashRaw...)

	msg = appendCompactU16(msg, len(instructions))
	for _, ins := range instructions {
		msg = append(msg, byte(keyIndex[ins.ProgramID]))
		msg = appendCompactU16(msg, len(ins.Accounts))
		for _, acc := range ins.Accounts {
			msg = append(msg, byte(keyIndex[acc.PublicKey]))
		}
		msg = appendCompactU16(msg, len(ins.Data))
		msg = append(msg, ins.Data...)
	}

	return msg, signers, nil
}

// appendCompactU16 appends n in the compact-u16 encoding: 7 bits per
// byte, little-endian, continuation bit 0x80, at most 3 bytes.
func appendCompactU16(b []byte, n int) []byte {
	v := uint16(n)
	for {
		if v < 0x80 {
			return append(b, byte(v))
		}
		b = append(b, byte(v&0x7f)|0x80)
		v >>= 7
	}
}
