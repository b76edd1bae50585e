//go:build !windows && !plan9

package acqlog

import "log/syslog"

func openSystemSyslog(tag string) (syslogWriter, error) {
	return syslog.New(syslog.LOG_LOCAL1|syslog.LOG_INFO, tag)
}
