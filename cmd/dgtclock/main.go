// dgtclock — демон часов DGT для шахматной программы: единая очередь команд дисплея,
// раздача по часам ser (DGT XL/3000 через доску), i2c (DGT Pi) и web (браузер).
//
// Использование:
//
//	dgtclock run -c dgtclock.yml        — запуск демона
//	dgtclock send text hello            — команда работающему демону
//	dgtclock console                    — интерактивная консоль
//	dgtclock status                     — состояние устройств
//	dgtclock ports                      — последовательные порты
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dgtclock: %v\n", err)
		os.Exit(1)
	}
}
