package chatcmder

import (
	"bytes"
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/grove/pkg/config"
	"github.com/papercomputeco/grove/pkg/dotdir"
)

var _ = Describe("NewChatCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
	})

	It("registers the identity flag", func() {
		cmd := NewChatCmd()
		flag := cmd.Flags().Lookup("user")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("u"))
	})
})

var _ = Describe("chat session", func() {
	var (
		ctx       context.Context
		configDir string
		cfg       *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		configDir = GinkgoT().TempDir()
		cfg = config.NewDefaultConfig()
		cfg.Storage.Provider = config.StorageInMemory
	})

	It("runs commands from piped input until EOF", func() {
		c := &chatCommander{cfg: cfg, configDir: configDir}
		var out bytes.Buffer

		Expect(c.run(ctx, strings.NewReader("/tree\n/bogus\n"), &out)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Signed out"))
		Expect(out.String()).To(ContainSubstring("unknown command"))
	})

	It("records the open conversation for the next session", func() {
		cfg.Identity.User = "alice"
		c := &chatCommander{cfg: cfg, configDir: configDir}
		var out bytes.Buffer

		Expect(c.run(ctx, strings.NewReader("/new\n/exit\n"), &out)).To(Succeed())

		state, err := dotdir.NewManager().LoadResumeState(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).NotTo(BeNil())
		Expect(state.UserID).To(Equal("alice"))
		Expect(state.ConversationID).NotTo(BeEmpty())
	})
})
