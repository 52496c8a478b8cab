package object

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"
)

func BenchmarkStoreWriteUniqueBlob(b *testing.B) {
	store := NewStore(filepath.Join(b.TempDir(), "store"))
	seed := []byte("0123456789abcdef0123456789abcdef")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		payload := []byte(fmt.Sprintf("blob-%d-%x", i, seed))
		if _, err := store.Write(TypeBlob, payload); err != nil {
			b.Fatalf("Write: %v", err)
		}
	}
}

func BenchmarkStoreReadBlob(b *testing.B) {
	store := NewStore(filepath.Join(b.TempDir(), "store"))
	payload := []byte("package main\n\nfunc main() { println(\"hello\") }\n")
	hash, err := store.Write(TypeBlob, payload)
	if err != nil {
		b.Fatalf("Write: %v", err)
	}

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := store.Read(hash); err != nil {
			b.Fatalf("Read: %v", err)
		}
	}
}

func benchmarkPack(b *testing.B, n int) []byte {
	b.Helper()
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, uint32(n))
	if err != nil {
		b.Fatalf("NewPackWriter: %v", err)
	}
	prev := bytes.Repeat([]byte("line of text\n"), 64)
	if err := pw.WriteObject(TypeBlob, prev); err != nil {
		b.Fatalf("WriteObject: %v", err)
	}
	for i := 1; i < n; i++ {
		next := append(bytes.Clone(prev), fmt.Sprintf("revision %d\n", i)...)
		if err := pw.WriteRefDelta(HashObject(TypeBlob, prev), prev, next); err != nil {
			b.Fatalf("WriteRefDelta: %v", err)
		}
		prev = next
	}
	if _, err := pw.Finish(); err != nil {
		b.Fatalf("Finish: %v", err)
	}
	return buf.Bytes()
}

func BenchmarkReadPack(b *testing.B) {
	data := benchmarkPack(b, 256)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ReadPack(data); err != nil {
			b.Fatalf("ReadPack: %v", err)
		}
	}
}

func BenchmarkResolvePackDeltaChain(b *testing.B) {
	data := benchmarkPack(b, 256)
	pf, err := ReadPack(data)
	if err != nil {
		b.Fatalf("ReadPack: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		store := NewStore(b.TempDir())
		b.StartTimer()
		if _, err := ResolvePack(store, pf.Entries); err != nil {
			b.Fatalf("ResolvePack: %v", err)
		}
	}
}
