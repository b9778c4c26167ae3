package cmd

import "testing"

func TestNewCommandSetsVersionAnnotations(t *testing.T) {
	t.Parallel()
	cmd := NewCommand("1.2.3", "abcdef0")

	if got := cmd.Annotations["version"]; got != "1.2.3" {
		t.Fatalf("expected version annotation %q, got %q", "1.2.3", got)
	}
	if got := cmd.Annotations["commit"]; got != "abcdef0" {
		t.Fatalf("expected commit annotation %q, got %q", "abcdef0", got)
	}
}

func TestNewCommandRegistersOpenBrowserFlag(t *testing.T) {
	t.Parallel()
	cmd := NewCommand("dev", "none")

	flag := cmd.Flags().Lookup("open-browser")
	if flag == nil {
		t.Fatal("expected an --open-browser flag to be registered")
	}
	if flag.DefValue != "false" {
		t.Fatalf("expected --open-browser to default to false, got %q", flag.DefValue)
	}
}
