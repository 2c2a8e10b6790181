package review

// Operator-facing notification texts, per operation and outcome.
type message struct {
	title       string
	description string
}

var messages = map[string]map[bool]message{
	OpLoad: {
		true:  {"Data Dimuat", "Daftar data berhasil dimuat ulang."},
		false: {"Gagal Memuat", "Terjadi kesalahan saat memuat data."},
	},
	OpUpdate: {
		true:  {"Data Diperbarui", "Perubahan berhasil disimpan."},
		false: {"Gagal Memperbarui", "Terjadi kesalahan saat memperbarui data."},
	},
	OpStatus: {
		true:  {"Status Diperbarui", "Status berhasil diubah."},
		false: {"Gagal Mengubah Status", "Terjadi kesalahan saat mengubah status."},
	},
	OpDelete: {
		true:  {"Data Dihapus", "Data berhasil dihapus dari sistem."},
		false: {"Gagal Menghapus", "Terjadi kesalahan saat menghapus data."},
	},
}
