package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/exzackly/exzos/abi"
	"github.com/exzackly/exzos/exec"
	"github.com/exzackly/exzos/kernel"
)

var errQuit = errors.New("shutdown")

var usage = `commands:
  load <priority> <hex>     load a program, printing its pid
  run <pid>                 make a loaded process ready
  runall                    make every loaded process ready
  kill <pid>                terminate a process
  ps                        list loaded processes
  schedule rr|fcfs|priority change the scheduling policy
  quantum <n>               change the round robin quantum
  create <file>             create an empty file
  read <file>               print a file
  write <file> <text>       replace a file's contents
  delete <file>             delete a file
  rename <from> <to>        rename a file
  recover <file>            undelete a file
  chkdsk                    check and repair the disk
  ls [-l]                   list files, -l includes hidden ones
  format [-quick|-full]     format the disk
  disasm <pid>              disassemble a process in memory
  dump                      print the kernel state
  shutdown                  stop the kernel
`

// shell turns keystrokes into commands. Keys arrive through the keyboard
// interrupt; a newline runs the buffered line.
type shell struct {
	k   *kernel.Kernel
	out io.Writer

	line strings.Builder
	quit bool
}

func newShell(k *kernel.Kernel, out io.Writer) *shell {
	sh := &shell{k: k, out: out}
	k.Input = sh.key

	return sh
}

// Type posts every rune of s as a keystroke.
func (sh *shell) Type(s string) {
	for _, r := range s {
		sh.k.Keypress(r)
	}
}

func (sh *shell) key(r rune) {
	if r != '\n' {
		sh.line.WriteRune(r)
		return
	}

	line := sh.line.String()
	sh.line.Reset()

	if err := sh.exec(line); err != nil {
		if err == errQuit {
			sh.quit = true
			return
		}

		fmt.Fprintf(sh.out, "error: %s\n", err)
	}
}

func (sh *shell) reply(op string) func(abi.DiskResult) {
	return func(res abi.DiskResult) {
		if res.Err != nil {
			fmt.Fprintf(sh.out, "%s: %s\n", op, res.Err)
			return
		}

		switch {
		case res.Data != nil:
			fmt.Fprintf(sh.out, "%s\n", res.Data)
		case res.Entries != nil:
			tw := tabwriter.NewWriter(sh.out, 4, 8, 1, ' ', 0)
			for _, ent := range res.Entries {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%d:%d:%d\n", ent.Name, ent.Size, ent.Created, ent.Track, ent.Sector, ent.Block)
			}
			tw.Flush()
		case res.Report != nil:
			for _, line := range res.Report {
				fmt.Fprintln(sh.out, line)
			}
		default:
			fmt.Fprintf(sh.out, "%s: ok\n", op)
		}
	}
}

func argc(args []string, n int, form string) error {
	if len(args) < n {
		return errors.Errorf("usage: %s", form)
	}

	return nil
}

func pidArg(s string) (int, error) {
	pid, err := strconv.Atoi(s)
	if err != nil {
		return -1, errors.Errorf("bad pid %q", s)
	}

	return pid, nil
}

func (sh *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	k := sh.k
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		io.WriteString(sh.out, usage)
	case "load":
		if err := argc(args, 2, "load <priority> <hex>"); err != nil {
			return err
		}

		prio, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Errorf("bad priority %q", args[0])
		}

		pid, err := k.LoadProgram(strings.Join(args[1:], ""), prio)
		if err != nil {
			return err
		}

		fmt.Fprintf(sh.out, "loaded pid %d\n", pid)
	case "run", "kill", "disasm":
		if err := argc(args, 1, cmd+" <pid>"); err != nil {
			return err
		}

		pid, err := pidArg(args[0])
		if err != nil {
			return err
		}

		switch cmd {
		case "run":
			return k.RunProcess(pid)
		case "kill":
			return k.KillProcess(pid)
		default:
			return sh.disasm(pid)
		}
	case "runall":
		return k.RunAll()
	case "ps":
		sh.ps()
	case "schedule":
		if err := argc(args, 1, "schedule rr|fcfs|priority"); err != nil {
			return err
		}

		p, err := kernel.ParsePolicy(args[0])
		if err != nil {
			return err
		}

		k.SetSchedulingPolicy(p)
	case "quantum":
		if err := argc(args, 1, "quantum <n>"); err != nil {
			return err
		}

		q, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Errorf("bad quantum %q", args[0])
		}

		return k.SetQuantum(q)
	case "create", "read", "delete", "recover":
		if err := argc(args, 1, cmd+" <file>"); err != nil {
			return err
		}

		r := sh.reply(cmd)

		switch cmd {
		case "create":
			return k.CreateFile(args[0], r)
		case "read":
			return k.ReadFile(args[0], r)
		case "delete":
			return k.DeleteFile(args[0], r)
		default:
			return k.RecoverFile(args[0], r)
		}
	case "write":
		if err := argc(args, 2, "write <file> <text>"); err != nil {
			return err
		}

		text := strings.Join(args[1:], " ")

		return k.WriteFile(args[0], []byte(text), sh.reply(cmd))
	case "rename":
		if err := argc(args, 2, "rename <from> <to>"); err != nil {
			return err
		}

		return k.RenameFile(args[0], args[1], sh.reply(cmd))
	case "chkdsk":
		return k.CheckDisk(sh.reply(cmd))
	case "ls":
		long := len(args) > 0 && args[0] == "-l"
		return k.ListFiles(long, sh.reply(cmd))
	case "format":
		quick := len(args) > 0 && args[0] == "-quick"
		return k.FormatDisk(quick, sh.reply(cmd))
	case "dump":
		io.WriteString(sh.out, k.Dump())
	case "shutdown":
		return errQuit
	default:
		return errors.Errorf("unknown command %q, try help", cmd)
	}

	return nil
}

func (sh *shell) ps() {
	tw := tabwriter.NewWriter(sh.out, 4, 8, 1, ' ', 0)

	fmt.Fprintf(tw, "PID\tBASE\tLIMIT\tPRI\tSTATE\tREGISTERS\tWAIT\tEXEC\n")

	for _, p := range sh.k.Processes().List() {
		state := "loaded"
		switch {
		case p.Executing:
			state = "running"
		case !p.InMemory():
			state = "disk"
		}

		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\t%s\t%d\t%d\n",
			p.Pid, p.Base, p.Limit, p.Priority, state, p.Regs, p.WaitCycles, p.ExecCycles)
	}

	tw.Flush()
}

func (sh *shell) disasm(pid int) error {
	p, ok := sh.k.Processes().Get(pid)
	if !ok {
		return errors.Wrapf(kernel.ErrProcessNotFound, "pid=%d", pid)
	}

	if !p.InMemory() {
		return errors.Errorf("pid %d is on disk", pid)
	}

	image, err := sh.k.Memory().Read(p.Base, p.Limit-p.Base)
	if err != nil {
		return err
	}

	// drop the zero fill after the program
	end := len(image)
	for end > 1 && image[end-1] == 0 && image[end-2] == 0 {
		end--
	}

	for _, line := range exec.Disassemble(image[:end]) {
		fmt.Fprintln(sh.out, line)
	}

	return nil
}
