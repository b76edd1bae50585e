//go:build windows || plan9

package acqlog

import "errors"

func openSystemSyslog(string) (syslogWriter, error) {
	return nil, errors.New(_ERROR_MESSAGE_SYSLOG_MISSING)
}
