package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func (b *Bot) handleCommand(ctx context.Context, userID, text string) (string, error) {
	cmd := strings.ToLower(strings.Fields(text)[0])

	switch cmd {
	case "/help":
		return helpReply, nil
	case "/clear":
		if err := b.synth.ClearHistory(ctx, userID); err != nil {
			return "", fmt.Errorf("clear history: %w", err)
		}
		return ClearedReply, nil
	case "/stats":
		return b.statsReply(ctx)
	case "/health":
		return b.healthReply(ctx), nil
	default:
		return fmt.Sprintf("❌ Perintah tidak dikenali: %s\nKetik /help untuk bantuan.", cmd), nil
	}
}

func (b *Bot) statsReply(ctx context.Context) (string, error) {
	stats, err := b.stats.Stats(ctx, b.now().Add(-24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("load stats: %w", err)
	}
	cache := b.embedder.CacheStats()

	return fmt.Sprintf(`📊 **Statistik Sistem**

**Database:**
• KBLI: %s
• KBJI: %s
• Publikasi: %d
• Users: %d

**Activity:**
• Active (24h): %d
• Total Messages: %s

**Cache:**
• Embeddings: %d/%d (%.1f%%)`,
		formatThousands(stats.KBLI),
		formatThousands(stats.KBJI),
		stats.Documents,
		stats.Sessions,
		stats.ActiveUsers24h,
		formatThousands(stats.TotalMessages),
		cache.Size, cache.MaxSize, cache.Usage,
	), nil
}

func (b *Bot) healthReply(ctx context.Context) string {
	health := b.health.Health(ctx)

	status, label := "✅", "Online"
	if !health.Available {
		status, label = "❌", "Offline"
	}
	warning := ""
	if !health.Available {
		warning = "⚠️ Perlu check koneksi ke Ollama!"
	}

	return fmt.Sprintf(`🏥 **System Health**

**Ollama:**
%s %s

**Models:**
• Embedding: %s %s
• LLM: %s %s
• Provider: %s

%s`,
		status, label,
		loadedMark(health.EmbeddingModelLoaded), health.EmbeddingModel,
		loadedMark(health.LLMModelLoaded), health.LLMModel,
		health.LLMProvider,
		warning,
	)
}

func loadedMark(loaded bool) string {
	if loaded {
		return "✅"
	}
	return "⚠️"
}

// formatThousands renders n with comma grouping, e.g. 1,234,567.
func formatThousands(n int) string {
	raw := strconv.Itoa(n)
	sign := ""
	if strings.HasPrefix(raw, "-") {
		sign, raw = "-", raw[1:]
	}
	if len(raw) <= 3 {
		return sign + raw
	}
	var b strings.Builder
	head := len(raw) % 3
	if head > 0 {
		b.WriteString(raw[:head])
	}
	for i := head; i < len(raw); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(raw[i : i+3])
	}
	return sign + b.String()
}
