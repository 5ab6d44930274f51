package sqlitepath

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveSQLitePath", func() {
	var (
		origHome   string
		origXDG    string
		origSQLite string
		origCwd    string
		homeDir    string
		cwdDir     string
	)

	BeforeEach(func() {
		origHome = os.Getenv("HOME")
		origXDG = os.Getenv("XDG_DATA_HOME")
		origSQLite = os.Getenv("GROVE_SQLITE")
		var err error
		origCwd, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		homeDir = GinkgoT().TempDir()
		cwdDir = GinkgoT().TempDir()
		Expect(os.Setenv("HOME", homeDir)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", "")).To(Succeed())
		Expect(os.Setenv("GROVE_SQLITE", "")).To(Succeed())
		Expect(os.Chdir(cwdDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Setenv("HOME", origHome)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", origXDG)).To(Succeed())
		Expect(os.Setenv("GROVE_SQLITE", origSQLite)).To(Succeed())
		Expect(os.Chdir(origCwd)).To(Succeed())
	})

	It("returns the override untouched", func() {
		Expect(os.Setenv("GROVE_SQLITE", "/tmp/ignored.db")).To(Succeed())

		path, err := ResolveSQLitePath("/tmp/explicit.db", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/explicit.db"))
	})

	It("prefers GROVE_SQLITE when set", func() {
		Expect(os.Setenv("GROVE_SQLITE", "/tmp/custom.db")).To(Succeed())

		path, err := ResolveSQLitePath("", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/custom.db"))
	})

	It("resolves ~/.grove/grove.db when present", func() {
		dbPath := filepath.Join(homeDir, ".grove", "grove.db")
		Expect(os.MkdirAll(filepath.Dir(dbPath), 0o755)).To(Succeed())
		Expect(os.WriteFile(dbPath, []byte("test"), 0o644)).To(Succeed())

		path, err := ResolveSQLitePath("", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(dbPath))
	})

	It("prefers a database in the working directory", func() {
		Expect(os.WriteFile(filepath.Join(cwdDir, "grove.db"), []byte("test"), 0o644)).To(Succeed())

		path, err := ResolveSQLitePath("", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("grove.db"))
	})

	It("falls back to grove.db inside the config directory", func() {
		configDir := filepath.Join(cwdDir, "conf")

		path, err := ResolveSQLitePath("", configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(configDir, "grove.db")))
		Expect(configDir).To(BeADirectory())
	})
})
