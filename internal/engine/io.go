package engine

import "golang.org/x/sys/unix"

func rawRead(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

func rawWrite(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

func isEAGAIN(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}
