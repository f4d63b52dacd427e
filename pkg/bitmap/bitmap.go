package bitmap

//Size 最大支持的位数
//
//Size is the number of offsets a Bitmap can hold.
const Size = uint8(32)

//Bitmap 定长位图，零值可用，不分配内存
//
//Bitmap is a fixed width bit set. The zero value is an empty set and it never allocates.
type Bitmap uint32

//Set 将offset位置的值设置为value(0/1)
//
//Set sets the bit at offset to value (0 or 1). It returns false if offset is out of range.
func (b *Bitmap) Set(offset uint8, value uint8) bool {
	if offset >= Size {
		return false
	}
	if value == 0 {
		*b &^= 1 << offset
	} else {
		*b |= 1 << offset
	}
	return true
}

//Get 获取offset位置处的value值
//
//Get returns the bit at offset, 0 if offset is out of range.
func (b Bitmap) Get(offset uint8) uint8 {
	if offset >= Size {
		return 0
	}
	return uint8(b>>offset) & 0x01
}

// Reset clears every bit.
func (b *Bitmap) Reset() {
	*b = 0
}

// Empty reports whether no bit is set.
func (b Bitmap) Empty() bool {
	return b == 0
}
