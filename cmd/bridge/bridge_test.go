package bridgecmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	bridgecmder "github.com/papercomputeco/bridge/cmd/bridge"
)

var _ = Describe("NewBridgeCmd", func() {
	It("wires every subcommand", func() {
		cmd := bridgecmder.NewBridgeCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("serve", "logs", "config", "version"))
	})

	It("declares the global flags", func() {
		cmd := bridgecmder.NewBridgeCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("rejects serve arguments", func() {
		cmd := bridgecmder.NewBridgeCmd()
		cmd.SetArgs([]string{"serve", "extra"})
		Expect(cmd.Execute()).NotTo(Succeed())
	})
})
