package sink_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bridge/pkg/storage"
	"github.com/papercomputeco/bridge/pkg/storage/inmemory"
	"github.com/papercomputeco/bridge/pkg/storage/jsonl"
	"github.com/papercomputeco/bridge/pkg/storage/sink"
	"github.com/papercomputeco/bridge/pkg/storage/sqlite"
)

var _ = Describe("Open", func() {
	var (
		ctx    context.Context
		tmpDir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
	})

	It("defaults to jsonl in the given directory", func() {
		dir := filepath.Join(tmpDir, "logs")
		d, where, err := sink.Open(ctx, sink.Options{Dir: dir})
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		Expect(d).To(BeAssignableToTypeOf(&jsonl.Driver{}))
		Expect(where).To(Equal(dir))
		Expect(filepath.Join(dir, jsonl.RawFile)).To(BeAnExistingFile())
	})

	It("places the sqlite database in the log directory when no dsn is set", func() {
		d, where, err := sink.Open(ctx, sink.Options{Name: sink.SQLite, Dir: tmpDir})
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		Expect(d).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		Expect(where).To(Equal(filepath.Join(tmpDir, sink.SQLiteFile)))
		_, statErr := os.Stat(where)
		Expect(statErr).NotTo(HaveOccurred())
	})

	It("returns a lister for every file backed sink", func() {
		d, _, err := sink.Open(ctx, sink.Options{Name: sink.SQLite, DSN: ":memory:"})
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		_, ok := d.(storage.Lister)
		Expect(ok).To(BeTrue())
	})

	It("opens the in-memory sink", func() {
		d, where, err := sink.Open(ctx, sink.Options{Name: sink.InMemory})
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		Expect(where).To(Equal("memory"))
	})

	It("requires a dsn for postgres", func() {
		_, _, err := sink.Open(ctx, sink.Options{Name: sink.Postgres})
		Expect(err).To(MatchError(ContainSubstring("log.dsn")))
	})

	It("rejects unknown sinks", func() {
		_, _, err := sink.Open(ctx, sink.Options{Name: "s3"})
		Expect(err).To(MatchError(ContainSubstring("unknown log sink")))
	})
})
