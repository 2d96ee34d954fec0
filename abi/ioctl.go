package abi

// Linux ioctl request numbers for the VexFS control interface, encoded with
// the standard _IOC scheme: dir<<30 | size<<16 | type<<8 | nr.
//
// The magic byte is 'V'. Request numbers are part of the external contract.

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNrShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	vexfsIoctlMagic = 'V'
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift | vexfsIoctlMagic<<iocTypeShift | size<<iocSizeShift | nr<<iocNrShift
}

// Ioctl request numbers.
var (
	IoctlSetVectorMeta = ioc(iocWrite, 1, VectorFileInfoSize)
	IoctlGetVectorMeta = ioc(iocRead, 2, VectorFileInfoSize)
	IoctlBatchInsert   = ioc(iocWrite, 3, BatchInsertSize)
	IoctlSearch        = ioc(iocRead|iocWrite, 4, SearchSize)
)
