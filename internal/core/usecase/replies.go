package usecase

import (
	"errors"
	"strings"
	"syscall"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

const (
	EmptyMessageReply = "Maaf, saya tidak menerima pesan kosong."
	ClearedReply      = "✅ Riwayat percakapan sudah dihapus."
	RateLimitedReply  = "⏱️ Kamu mengirim terlalu banyak pesan. Tunggu sebentar ya!"
	WorkerErrorReply  = "😅 Maaf, ada kendala teknis. Coba lagi dalam beberapa saat ya!"
	MediaOnlyReply    = "Maaf, saat ini saya hanya bisa memproses pesan teks."

	timeoutReply     = "⏱️ Sistem sedang lambat. Coba lagi dalam beberapa saat."
	unreachableReply = "🔌 Tidak bisa terhubung ke server. Hubungi admin."
	genericReply     = "😅 Ada kendala teknis. Coba lagi atau hubungi admin."
)

const WelcomeMessage = `Selamat datang di bot KBLI-KBJI!

Saya bisa membantu kamu mencari:
• Kode KBLI (klasifikasi usaha/kegiatan)
• Kode KBJI (klasifikasi pekerjaan/jabatan)
• Data dan publikasi statistik

Cara pakai:
#kbli [pertanyaan] - Cari kode usaha
#kbji [pertanyaan] - Cari kode pekerjaan
#publikasi [pertanyaan] - Cari data/publikasi

Contoh:
- #kbli Saya mau buka usaha fotokopi
- #kbji kerja sebagai guru madrasah diniyah
- #publikasi data kemiskinan 2023

Fitur lain:
/home - Mode percakapan natural
/help - Panduan lengkap
/stats - Lihat statistik

Silakan tanya apa saja!`

const helpReply = `📋 **DemakAI - Panduan Penggunaan**

**Mode System:**
• #kbli atau #kbji - Cari kode KBLI/KBJI
• #publikasi - Cari data/publikasi
• /home - Kembali ke mode natural

**Commands:**
• /help - Panduan ini
• /clear - Hapus riwayat percakapan
• /stats - Statistik sistem
• /health - Status server

**Contoh:**
#kbli usaha warung makan
#publikasi data kemiskinan 2023
/home`

const naturalFooter = `───────────────
Saya DemakAI 🤖 — asisten statistik Kabupaten Demak.
Ketik:
• #kbli / #kbji → cari klasifikasi usaha/jabatan
• #publikasi → cari data & publikasi
/home → kembali ke mode awal`

func homeBanner(indicator string) string {
	return indicator + " Mode Natural aktif!\n\nKamu bisa ngobrol santai dengan saya atau gunakan:\n• #kbli atau #kbji untuk mencari kode KBLI/KBJI\n• #publikasi untuk mencari data/publikasi"
}

func modeFooter(mode domain.Mode) string {
	switch mode {
	case domain.ModeCodeLookup:
		return "───────────────\n Ketik\n /home untuk mode natural\n /help untuk batuan\n #publikasi untuk publikasi"
	case domain.ModePublication:
		return "───────────────\n Ketik\n /home untuk mode natural\n /help untuk batuan\n #kbli untuk KBLI/KBJI"
	default:
		return naturalFooter
	}
}

func activationMessage(mode domain.Mode, indicator string) string {
	switch mode {
	case domain.ModeCodeLookup:
		return indicator + " Mode KBLI/KBJI aktif!\n\nSekarang kirim query dengan format:\n#kbli [pertanyaan] atau #kbji [pertanyaan]\n\nContoh:\n#kbli usaha warung makan\n#kbji kerja sebagai programmer\n\nSetelah dapat hasil, kamu bisa lanjut ngobrol natural untuk follow-up questions.\n\n" + modeFooter(mode)
	case domain.ModePublication:
		return indicator + " Mode Publikasi aktif!\n\nSetiap pertanyaan akan dicari di database publikasi.\n\nContoh:\n- data kemiskinan 2023\n- apa saja publikasi yang tersedia\n\n" + modeFooter(mode)
	default:
		return homeBanner(indicator)
	}
}

func withFooter(indicator, answer string, mode domain.Mode) string {
	return indicator + " " + answer + "\n\n" + modeFooter(mode)
}

// apologyFor picks a user-facing apology from the error.
func apologyFor(err error) string {
	if err == nil {
		return genericReply
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return timeoutReply
	case errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(msg, "connection refused") || strings.Contains(msg, "econnrefused"):
		return unreachableReply
	default:
		return genericReply
	}
}
