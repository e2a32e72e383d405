package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore_AppendAndIsolation(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "a", SessionMessage{Role: RoleHuman, Content: "halo"}))
	require.NoError(t, store.Append(ctx, "a", SessionMessage{Role: RoleAI, Content: "hai"}))
	require.NoError(t, store.Append(ctx, "b", SessionMessage{Role: RoleHuman, Content: "lain"}))

	msgs, err := store.Messages(ctx, "a")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "halo", msgs[0].Content)
	assert.Equal(t, RoleAI, msgs[1].Role)

	// 返回的是副本
	msgs[0].Content = "diubah"
	again, _ := store.Messages(ctx, "a")
	assert.Equal(t, "halo", again[0].Content)

	empty, err := store.Messages(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemorySessionStore_Concurrent(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append(ctx, "s", SessionMessage{Role: RoleHuman, Content: "q"}, SessionMessage{Role: RoleAI, Content: "a"})
		}()
	}
	wg.Wait()

	msgs, _ := store.Messages(ctx, "s")
	assert.Len(t, msgs, 40)
}

func TestRedisSessionStore_NilClient(t *testing.T) {
	store := NewRedisSessionStore(nil, "", time.Hour)
	assert.Equal(t, "csipb:session:abc", store.key("abc"))
	assert.Error(t, store.Append(context.Background(), "abc", SessionMessage{Content: "x"}))
	_, err := store.Messages(context.Background(), "abc")
	assert.Error(t, err)
}

func TestFormatHistory_Empty(t *testing.T) {
	assert.Equal(t, NoHistoryText, FormatHistory(nil, 1200))
}

func TestFormatHistory_Prefixes(t *testing.T) {
	text := FormatHistory([]SessionMessage{
		{Role: RoleHuman, Content: "Apa itu variabel?"},
		{Role: RoleAI, Content: "Variabel adalah wadah nilai."},
		{Role: "system", Content: "catatan"},
	}, 1200)

	assert.Equal(t, "[Siswa] Apa itu variabel?\n[Tutor] Variabel adalah wadah nilai.\n[Riwayat] catatan", text)
}

func TestFormatHistory_KeepsTail(t *testing.T) {
	long := strings.Repeat("x", 50) + "AKHIR"
	text := FormatHistory([]SessionMessage{{Role: RoleHuman, Content: long}}, 20)

	assert.True(t, strings.HasPrefix(text, "...\n"))
	assert.True(t, strings.HasSuffix(text, "AKHIR"))
	assert.Equal(t, 20, len([]rune(strings.TrimPrefix(text, "...\n"))))
}

func TestFormatHistory_RuneSafe(t *testing.T) {
	text := FormatHistory([]SessionMessage{{Role: RoleAI, Content: strings.Repeat("é", 30)}}, 10)
	assert.Equal(t, "...\n"+strings.Repeat("é", 10), text)
}
