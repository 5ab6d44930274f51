package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/storage/sqlite"
	"github.com/papercomputeco/grove/pkg/storage/storagetest"
)

var _ = Describe("SQLiteDriver", func() {
	storagetest.DescribeDriver(func() storage.Driver {
		driver, err := sqlite.NewSQLiteDriver(":memory:")
		Expect(err).NotTo(HaveOccurred())
		return driver
	})

	Describe("NewSQLiteDriver", func() {
		It("creates a driver with file database", func() {
			tmpDir := GinkgoT().TempDir()
			dbPath := filepath.Join(tmpDir, "test.db")

			s, err := sqlite.NewSQLiteDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			// Verify file was created
			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps conversations across reopen", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "grove.db")

			s, err := sqlite.NewSQLiteDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			id, err := s.Insert(ctx, "alice", storagetest.NewDocument("kept", time.Now()))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close()).To(Succeed())

			reopened, err := sqlite.NewSQLiteDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			got, err := reopened.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("kept"))
		})
	})
})
