package logscmder_test

import (
	"bytes"
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	logscmder "github.com/papercomputeco/bridge/cmd/bridge/logs"
	"github.com/papercomputeco/bridge/pkg/normalize"
	"github.com/papercomputeco/bridge/pkg/storage"
	"github.com/papercomputeco/bridge/pkg/storage/jsonl"
)

var _ = Describe("logs command", func() {
	var (
		dir string
		out *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := logscmder.NewLogsCmd()
		cmd.PersistentFlags().String("config-dir", GinkgoT().TempDir(), "")
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append([]string{"--log-dir", dir}, args...))
		return cmd.Execute()
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		out = &bytes.Buffer{}

		d, err := jsonl.NewDriver(dir)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		ctx := context.Background()
		for _, id := range []string{"req_1_aaaaaaaa", "req_2_bbbbbbbb", "req_3_cccccccc"} {
			Expect(d.WriteRaw(ctx, &storage.RawPair{
				RequestID: id,
				Request:   normalize.Normalize("https://api.anthropic.com/v1/models", "GET", nil, nil),
				Response:  &storage.Response{Status: 200, Body: "{}"},
			})).To(Succeed())
		}
		Expect(d.WriteOrphan(ctx, &storage.OrphanEntry{
			RequestID: "req_4_dddddddd",
			StartedAt: time.Now(),
		})).To(Succeed())
	})

	lines := func() []string {
		return strings.Split(strings.TrimSpace(out.String()), "\n")
	}

	It("prints raw records one per line", func() {
		Expect(run()).To(Succeed())
		Expect(lines()).To(HaveLen(3))
		Expect(lines()[0]).To(ContainSubstring(`"request_id":"req_1_aaaaaaaa"`))
	})

	It("filters by request id", func() {
		Expect(run("--request-id", "req_2_bbbbbbbb")).To(Succeed())
		Expect(lines()).To(HaveLen(1))
		Expect(lines()[0]).To(ContainSubstring("req_2_bbbbbbbb"))
	})

	It("keeps the newest records under a limit", func() {
		Expect(run("-n", "1")).To(Succeed())
		Expect(lines()).To(HaveLen(1))
		Expect(lines()[0]).To(ContainSubstring("req_3_cccccccc"))
	})

	It("lists orphans separately", func() {
		Expect(run("--kind", "orphan")).To(Succeed())
		Expect(lines()).To(HaveLen(1))
		Expect(lines()[0]).To(ContainSubstring(`"orphaned":true`))
	})

	It("rejects unknown kinds", func() {
		Expect(run("--kind", "everything")).NotTo(Succeed())
	})

	It("refuses the in-memory sink", func() {
		Expect(run("--log-sink", "inmemory")).To(MatchError(ContainSubstring("keeps no records")))
	})
})
