package record_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bitdefender/bddisasm/internal/record"
)

var _ = Describe("Instrux", func() {
	var hdr record.Instrux

	BeforeEach(func() {
		hdr = record.Instrux{}
	})

	Describe("scalar fields", func() {
		It("should store values little-endian", func() {
			hdr.PutU32(record.OffInstruction, 0x11223344)

			Expect(hdr[record.OffInstruction]).To(Equal(byte(0x44)))
			Expect(hdr[record.OffInstruction+3]).To(Equal(byte(0x11)))
			Expect(hdr.U32(record.OffInstruction)).To(Equal(uint32(0x11223344)))
		})

		It("should not spill into neighbouring fields", func() {
			hdr.PutU64(record.OffImmediate1, ^uint64(0))

			Expect(hdr.U8(record.OffImmediate2)).To(BeZero())
			Expect(hdr.U32(record.OffRelativeOffset)).To(BeZero())
		})
	})

	Describe("flags word", func() {
		It("should set and clear single bits", func() {
			hdr.SetFlag(record.FlagHasModRm, true)
			hdr.SetFlag(record.FlagHasMandatoryF3, true)

			Expect(hdr.Flag(record.FlagHasModRm)).To(BeTrue())
			Expect(hdr.Flag(record.FlagHasMandatoryF3)).To(BeTrue())
			Expect(hdr.Flag(record.FlagHasSib)).To(BeFalse())

			hdr.SetFlag(record.FlagHasModRm, false)
			Expect(hdr.Flag(record.FlagHasModRm)).To(BeFalse())
			Expect(hdr.Flag(record.FlagHasMandatoryF3)).To(BeTrue())
		})

		It("should keep bits above 31 addressable", func() {
			Expect(record.FlagHasMandatoryF3).To(BeNumerically(">", 31))
			Expect(record.FlagHasMandatoryF3).To(BeNumerically("<", 64))
		})
	})

	Describe("nibble fields", func() {
		It("should pack component lengths independently", func() {
			hdr.SetNibble(record.OffLengths, record.LenDisp, 4)
			hdr.SetNibble(record.OffLengths, record.LenImm1, 8)
			hdr.SetNibble(record.OffLengths, record.LenRelOffs, 0xF)

			Expect(hdr.Nibble(record.OffLengths, record.LenDisp)).To(Equal(uint8(4)))
			Expect(hdr.Nibble(record.OffLengths, record.LenImm1)).To(Equal(uint8(8)))
			Expect(hdr.Nibble(record.OffLengths, record.LenRelOffs)).To(Equal(uint8(0xF)))
			Expect(hdr.Nibble(record.OffLengths, record.LenAddr)).To(BeZero())
		})

		It("should truncate values wider than four bits", func() {
			hdr.SetNibble(record.OffOffsets, record.PosModRm, 0x13)

			Expect(hdr.Nibble(record.OffOffsets, record.PosModRm)).To(Equal(uint8(3)))
			Expect(hdr.Nibble(record.OffOffsets, record.PosSseImm)).To(BeZero())
		})
	})

	Describe("bitfields", func() {
		It("should round-trip the packed mode word", func() {
			hdr.SetField(record.OffModes, record.ModesDefCode, 4, 2)
			hdr.SetField(record.OffModes, record.ModesEncMode, 4, 3)
			hdr.SetField(record.OffModes, record.ModesEfOpMode, 4, 1)

			Expect(hdr.Field(record.OffModes, record.ModesDefCode, 4)).To(Equal(uint32(2)))
			Expect(hdr.Field(record.OffModes, record.ModesEncMode, 4)).To(Equal(uint32(3)))
			Expect(hdr.Field(record.OffModes, record.ModesEfOpMode, 4)).To(Equal(uint32(1)))
			Expect(hdr.Field(record.OffModes, record.ModesVexMode, 4)).To(BeZero())
		})

		It("should extract EVEX fields of different widths", func() {
			hdr.SetField(record.OffExs, record.ExsV, 4, 0xA)
			hdr.SetField(record.OffExs, record.ExsK, 3, 7)
			hdr.SetField(record.OffExs, record.ExsM, 5, 0x1F)

			Expect(hdr.Field(record.OffExs, record.ExsV, 4)).To(Equal(uint32(0xA)))
			Expect(hdr.Field(record.OffExs, record.ExsK, 3)).To(Equal(uint32(7)))
			Expect(hdr.Field(record.OffExs, record.ExsM, 5)).To(Equal(uint32(0x1F)))
			Expect(hdr.Field(record.OffExs, record.ExsZ, 1)).To(BeZero())
		})
	})

	Describe("mnemonic", func() {
		It("should stop at the terminator", func() {
			hdr.SetMnemonic("MOV")
			Expect(hdr.Mnemonic()).To(Equal("MOV"))

			hdr.SetMnemonic("NOP")
			Expect(hdr.Mnemonic()).To(Equal("NOP"))
		})

		It("should keep room for the terminator", func() {
			long := "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
			hdr.SetMnemonic(long)

			Expect(hdr.Mnemonic()).To(Equal(long[:record.MnemonicSize-1]))
		})
	})
})

var _ = Describe("Operand", func() {
	var op record.Operand

	BeforeEach(func() {
		op = record.Operand{}
	})

	It("should decode the flag byte", func() {
		op.SetByteBit(record.OpOffFlags, record.OpFlagIsDefault, true)
		op.SetByteBit(record.OpOffFlags, record.OpFlagSignExtendedDws, true)

		Expect(op.ByteBit(record.OpOffFlags, record.OpFlagIsDefault)).To(BeTrue())
		Expect(op.ByteBit(record.OpOffFlags, record.OpFlagSignExtendedOp1)).To(BeFalse())
		Expect(op.ByteBit(record.OpOffFlags, record.OpFlagSignExtendedDws)).To(BeTrue())
	})

	It("should decode the decorator word", func() {
		op.SetBit(record.OpOffDecorator, record.DecoHasMask, true)
		op.SetField(record.OpOffDecorator, record.DecoMsk, 8, 3)
		op.SetField(record.OpOffDecorator, record.DecoBcCount, 8, 16)

		Expect(op.Bit(record.OpOffDecorator, record.DecoHasMask)).To(BeTrue())
		Expect(op.Bit(record.OpOffDecorator, record.DecoHasBroadcast)).To(BeFalse())
		Expect(op.Field(record.OpOffDecorator, record.DecoMsk, 8)).To(Equal(uint32(3)))
		Expect(op.Field(record.OpOffDecorator, record.DecoBcCount, 8)).To(Equal(uint32(16)))
	})

	It("should keep the memory displacement clear of the scale byte", func() {
		op.PutU8(record.OpOffMemScale, 8)
		op.PutU64(record.OpOffMemDisp, 0xFFFFFFFFFFFFFFF0)

		Expect(op.U8(record.OpOffMemScale)).To(Equal(uint8(8)))
		Expect(op.U64(record.OpOffMemDisp)).To(Equal(uint64(0xFFFFFFFFFFFFFFF0)))
	})

	It("should fit every payload inside the record", func() {
		Expect(record.OpOffMemDisp + 8).To(BeNumerically("<=", record.OperandSize))
		Expect(record.OpOffAddrOffset + 8).To(BeNumerically("<=", record.OperandSize))
		Expect(record.OpOffRegFlags + 1).To(BeNumerically("<=", record.OperandSize))
	})
})

var _ = Describe("Property", func() {
	It("should reject values outside the served range", func() {
		Expect(record.Property(0).Valid()).To(BeFalse())
		Expect(record.PropCpuidFlag.Valid()).To(BeTrue())
		Expect(record.PropIsaSet.Valid()).To(BeTrue())
		Expect(record.Property(record.NumProperties).Valid()).To(BeFalse())
	})

	It("should name every served property", func() {
		for p := record.PropCpuidFlag; p <= record.PropIsaSet; p++ {
			Expect(p.String()).ToNot(Equal("unknown"))
		}
		Expect(record.Property(200).String()).To(Equal("unknown"))
	})
})
