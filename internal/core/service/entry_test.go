package service

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/yndnr/confmesh-go/internal/core/domain"
)

func TestManager_SetGetRoundTrip(t *testing.T) {
	m := newTestManager(t, Config{})

	t.Run("i32", func(t *testing.T) {
		for _, v := range []int32{0, -1, math.MinInt32, math.MaxInt32} {
			mustOK(t, m.SetI32("k", v))
			if got, err := m.GetI32("k", 7); err != nil || got != v {
				t.Fatalf("GetI32() = %v, %v; want %v", got, err, v)
			}
		}
	})
	t.Run("u32", func(t *testing.T) {
		mustOK(t, m.SetU32("k", math.MaxUint32))
		if got, err := m.GetU32("k", 0); err != nil || got != math.MaxUint32 {
			t.Fatalf("GetU32() = %v, %v", got, err)
		}
	})
	t.Run("i64", func(t *testing.T) {
		mustOK(t, m.SetI64("k", math.MinInt64))
		if got, err := m.GetI64("k", 0); err != nil || got != math.MinInt64 {
			t.Fatalf("GetI64() = %v, %v", got, err)
		}
	})
	t.Run("float bits", func(t *testing.T) {
		for _, v := range []float32{0.1, -0, float32(math.Inf(1)), float32(math.NaN()), math.SmallestNonzeroFloat32} {
			mustOK(t, m.SetFloat("k", v))
			got, err := m.GetFloat("k", 0)
			if err != nil || math.Float32bits(got) != math.Float32bits(v) {
				t.Fatalf("GetFloat() = %v, %v; want %v", got, err, v)
			}
		}
	})
	t.Run("bool", func(t *testing.T) {
		mustOK(t, m.SetBool("k", true))
		if got, err := m.GetBool("k", false); err != nil || !got {
			t.Fatalf("GetBool() = %v, %v", got, err)
		}
	})
	t.Run("str", func(t *testing.T) {
		mustOK(t, m.SetStr("k", "héllo\x00world"))
		if got, err := m.GetString("k", ""); err != nil || got != "héllo\x00world" {
			t.Fatalf("GetString() = %q, %v", got, err)
		}
	})
	t.Run("blob", func(t *testing.T) {
		in := []byte{0, 1, 2, 0xff}
		mustOK(t, m.SetBlob("k", in))
		in[0] = 9
		got, err := m.GetBlobBytes("k")
		if err != nil || !bytes.Equal(got, []byte{0, 1, 2, 0xff}) {
			t.Fatalf("GetBlobBytes() = %v, %v", got, err)
		}
	})
}

func TestManager_AppTimeoutScenario(t *testing.T) {
	m := newTestManager(t, Config{})
	mustOK(t, m.SetI32("app.timeout", 5000))
	if v, err := m.GetI32("app.timeout", 1000); err != nil || v != 5000 {
		t.Fatalf("GetI32() = %v, %v; want 5000", v, err)
	}
}

func TestManager_GetAbsentReturnsCallerDefault(t *testing.T) {
	m := newTestManager(t, Config{})
	mustOK(t, m.SetDefaultI32("port", 80))

	if v, err := m.GetI32("port", 8080); err != nil || v != 8080 {
		t.Fatalf("GetI32() = %v, %v; want caller default 8080", v, err)
	}
	if v, err := m.GetString("name", "dflt"); err != nil || v != "dflt" {
		t.Fatalf("GetString() = %q, %v", v, err)
	}
	buf := make([]byte, 8)
	n, err := m.GetStr("name", buf, "abc")
	if err != nil || string(buf[:n]) != "abc" {
		t.Fatalf("GetStr() = %q, %v", buf[:n], err)
	}
	_, err = m.GetBlob("blob", buf)
	wantStatus(t, err, domain.StatusNotFound)
}

func TestManager_TypeMismatch(t *testing.T) {
	m := newTestManager(t, Config{})
	mustOK(t, m.SetI32("k", 1))

	_, err := m.GetU32("k", 0)
	wantStatus(t, err, domain.StatusTypeMismatch)
	_, err = m.GetString("k", "")
	wantStatus(t, err, domain.StatusTypeMismatch)
	_, err = m.BlobLen("k")
	wantStatus(t, err, domain.StatusTypeMismatch)

	// Overwrite replaces the slot type.
	mustOK(t, m.SetStr("k", "now a string"))
	if typ, err := m.GetType("k"); err != nil || typ != domain.TypeStr {
		t.Fatalf("GetType() = %v, %v", typ, err)
	}
}

func TestManager_KeyValidation(t *testing.T) {
	m := newTestManager(t, Config{MaxKeyLen: 16})

	tests := []struct {
		name string
		key  string
		want domain.Status
	}{
		{"empty", "", domain.StatusKeyTooLong},
		{"at limit", strings.Repeat("k", 16), domain.StatusOK},
		{"over limit", strings.Repeat("k", 17), domain.StatusKeyTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantStatus(t, m.SetI32(tt.key, 1), tt.want)
			_, err := m.GetI32(tt.key, 0)
			wantStatus(t, err, tt.want)
		})
	}
}

func TestManager_RejectsInvalidUTF8(t *testing.T) {
	m := newTestManager(t, Config{})

	wantStatus(t, m.SetI32("k\xff", 1), domain.StatusInvalidParameter)
	_, err := m.GetI32("k\xff", 0)
	wantStatus(t, err, domain.StatusInvalidParameter)
	wantStatus(t, m.SetStr("s", "a\xffb"), domain.StatusInvalidParameter)
	wantStatus(t, m.SetDefaultStr("s", "a\xffb"), domain.StatusInvalidParameter)
	if m.Exists("s") {
		t.Fatal("rejected string was stored")
	}

	// Blobs carry arbitrary bytes.
	mustOK(t, m.SetBlob("b", []byte("a\xffb")))
	mustOK(t, m.SetStr("s", "ünïcode"))
}

func TestManager_ValueSizeLimit(t *testing.T) {
	m := newTestManager(t, Config{MaxValueSize: 64})
	mustOK(t, m.SetStr("ok", strings.Repeat("x", 64)))
	wantStatus(t, m.SetStr("big", strings.Repeat("x", 65)), domain.StatusInvalidParameter)
	wantStatus(t, m.SetBlob("big", make([]byte, 65)), domain.StatusInvalidParameter)
}

func TestManager_BufferGetters(t *testing.T) {
	m := newTestManager(t, Config{})
	mustOK(t, m.SetStr("s", "hello"))
	mustOK(t, m.SetBlob("b", []byte{1, 2, 3}))

	if n, err := m.StrLen("s"); err != nil || n != 5 {
		t.Fatalf("StrLen() = %d, %v", n, err)
	}
	if n, err := m.BlobLen("b"); err != nil || n != 3 {
		t.Fatalf("BlobLen() = %d, %v", n, err)
	}
	_, err := m.StrLen("missing")
	wantStatus(t, err, domain.StatusNotFound)

	small := []byte("XXXX")
	_, err = m.GetStr("s", small, "")
	wantStatus(t, err, domain.StatusBufferTooSmall)
	if string(small) != "XXXX" {
		t.Fatalf("buffer modified on failure: %q", small)
	}
	_, err = m.GetBlob("b", make([]byte, 2))
	wantStatus(t, err, domain.StatusBufferTooSmall)

	buf := make([]byte, 5)
	if n, err := m.GetStr("s", buf, ""); err != nil || string(buf[:n]) != "hello" {
		t.Fatalf("GetStr() = %q, %v", buf[:n], err)
	}
	if n, err := m.GetBlob("b", buf); err != nil || !bytes.Equal(buf[:n], []byte{1, 2, 3}) {
		t.Fatalf("GetBlob() = %v, %v", buf[:n], err)
	}
}

func TestManager_ExistsDeleteCount(t *testing.T) {
	m := newTestManager(t, Config{})

	if m.Exists("a") {
		t.Fatal("Exists() on empty store")
	}
	mustOK(t, m.SetI32("a", 1))
	mustOK(t, m.SetI32("b", 2))
	mustOK(t, m.SetI32("a", 3))
	if !m.Exists("a") || m.Count() != 2 {
		t.Fatalf("Exists() = %v, Count() = %d", m.Exists("a"), m.Count())
	}

	mustOK(t, m.Delete("a"))
	if m.Exists("a") || m.Count() != 1 {
		t.Fatal("Delete() did not remove the key")
	}
	wantStatus(t, m.Delete("a"), domain.StatusNotFound)
	_, err := m.GetType("a")
	wantStatus(t, err, domain.StatusNotFound)
}

func TestManager_Capacity(t *testing.T) {
	m := newTestManager(t, Config{MaxKeys: 32})

	for i := 0; i < 32; i++ {
		mustOK(t, m.SetI32(fmt.Sprintf("k%02d", i), int32(i)))
	}
	wantStatus(t, m.SetI32("overflow", 1), domain.StatusCapacityExceeded)

	// Overwrites still succeed when full.
	mustOK(t, m.SetI32("k00", 100))
	if m.Count() != 32 {
		t.Fatalf("Count() = %d, want 32", m.Count())
	}

	ns, err := m.OpenNamespace("other")
	mustOK(t, err)
	wantStatus(t, ns.SetI32("x", 1), domain.StatusCapacityExceeded)
}

func TestManager_Iterate(t *testing.T) {
	m := newTestManager(t, Config{MaxKeys: 32})

	for _, n := range []int{0, 1, 5, 32} {
		t.Run(fmt.Sprintf("%d entries", n), func(t *testing.T) {
			mustOK(t, m.Deinit())
			mustOK(t, m.Init(Config{MaxKeys: 32}))
			for i := 0; i < n; i++ {
				mustOK(t, m.SetI32(fmt.Sprintf("k%02d", i), int32(i)))
			}
			// Overwrite keeps position.
			if n > 0 {
				mustOK(t, m.SetI32("k00", 99))
			}

			var keys []string
			mustOK(t, m.Iterate(func(e domain.Entry) bool {
				keys = append(keys, e.Key)
				return true
			}))
			if len(keys) != n {
				t.Fatalf("visited %d entries, want %d", len(keys), n)
			}
			for i, k := range keys {
				if want := fmt.Sprintf("k%02d", i); k != want {
					t.Fatalf("keys[%d] = %q, want %q", i, k, want)
				}
			}
		})
	}

	t.Run("early stop", func(t *testing.T) {
		visited := 0
		mustOK(t, m.Iterate(func(domain.Entry) bool {
			visited++
			return visited < 3
		}))
		if visited != 3 {
			t.Fatalf("visited = %d, want 3", visited)
		}
	})

	t.Run("reentrant", func(t *testing.T) {
		mustOK(t, m.Iterate(func(e domain.Entry) bool {
			if !m.Exists(e.Key) {
				t.Errorf("Exists(%q) = false during iteration", e.Key)
			}
			return true
		}))
	})

	t.Run("nil func", func(t *testing.T) {
		wantStatus(t, m.Iterate(nil), domain.StatusInvalidParameter)
	})
}
